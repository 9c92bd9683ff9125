package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/index"
	"github.com/annolab/annostore/internal/model"
)

// Failure records one dependent whose recompute failed during a sweep.
type Failure struct {
	ID  string
	Err error
}

// Report is the partial-success result of a propagation sweep. A sweep is
// best-effort-complete: individual dependent failures never abort
// propagation to the rest, and never roll back the primary mutation.
// Recomputing an already-correct target list is a no-op, so a failed sweep
// can be retried idempotently (or closed out with Rebuild).
type Report struct {
	// Updated lists the ids of dependents whose index documents were
	// recomputed and rewritten, sorted.
	Updated []string

	// Failures lists dependents whose recompute or rewrite failed.
	Failures []Failure

	// Truncated is set when the sweep stopped at the depth bound with
	// dependents still pending.
	Truncated bool
}

// dependents returns every indexed annotation whose target_list contains
// id. Queries go through the retry helper because the index is eventually
// consistent and a read may transiently fail right after a write.
func (e *Engine) dependents(ctx context.Context, id string) ([]*model.Annotation, error) {
	return errors.RetryWithResult(ctx, e.retry, func() ([]*model.Annotation, error) {
		return e.index.QueryByTarget(ctx, index.Criteria{TargetID: id})
	})
}

// sweep recomputes the target list of every dependent, breadth-first: each
// rewritten dependent's own dependents join the worklist until a level
// yields nothing new. A visited set keeps cyclic reference graphs from
// looping, and the depth bound keeps a pathological fan-out from running
// away. depErr, if non-nil, is the failure of the initial dependent query
// and is reported against originID.
func (e *Engine) sweep(ctx context.Context, initial []*model.Annotation, depErr error, originID string) *Report {
	report := &Report{}
	if depErr != nil {
		e.log.Warn("propagation_dependent_query_failed",
			slog.String("annotation_id", originID),
			slog.String("error", depErr.Error()))
		report.Failures = append(report.Failures, Failure{ID: originID, Err: depErr})
		return report
	}

	var mu sync.Mutex
	visited := map[string]bool{originID: true}
	level := initial

	for depth := 0; len(level) > 0; depth++ {
		if depth >= e.maxDepth {
			e.log.Warn("propagation_depth_bound_reached",
				slog.String("annotation_id", originID),
				slog.Int("max_depth", e.maxDepth),
				slog.Int("pending", len(level)))
			report.Truncated = true
			break
		}

		var next []*model.Annotation
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)

		for _, dep := range level {
			mu.Lock()
			skip := visited[dep.ID]
			visited[dep.ID] = true
			mu.Unlock()
			if skip {
				continue
			}

			g.Go(func() error {
				if err := e.reindex(gctx, dep); err != nil {
					e.log.Warn("propagation_dependent_failed",
						slog.String("annotation_id", dep.ID),
						slog.String("error", err.Error()))
					mu.Lock()
					report.Failures = append(report.Failures, Failure{ID: dep.ID, Err: err})
					mu.Unlock()
					return nil // best effort, keep sweeping
				}

				mu.Lock()
				report.Updated = append(report.Updated, dep.ID)
				mu.Unlock()

				transitive, err := e.dependents(gctx, dep.ID)
				if err != nil {
					e.log.Warn("propagation_dependent_query_failed",
						slog.String("annotation_id", dep.ID),
						slog.String("error", err.Error()))
					mu.Lock()
					report.Failures = append(report.Failures, Failure{ID: dep.ID, Err: err})
					mu.Unlock()
					return nil
				}
				mu.Lock()
				next = append(next, transitive...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; they record failures

		level = next
	}

	sort.Strings(report.Updated)
	return report
}

// reindex recomputes one dependent's target list from current state and
// rewrites its index document. The authoritative record comes from the
// primary store; the index copy is used only if the store no longer has it.
func (e *Engine) reindex(ctx context.Context, dep *model.Annotation) error {
	a, err := e.store.Get(ctx, dep.ID)
	if err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		a = dep.Clone()
	}
	a.TargetList, err = e.resolver.TargetList(ctx, a)
	if err != nil {
		return err
	}
	return e.index.Replace(ctx, a)
}

// Rebuild re-resolves and rewrites the index document of every annotation
// in the primary store. The index is a derived projection, so a rebuild is
// always safe; it is the operator's recovery path for any staleness the
// bounded sweep left behind.
func (e *Engine) Rebuild(ctx context.Context) (*Report, error) {
	ids, err := e.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	e.resolver.Flush()
	report := &Report{}
	for _, id := range ids {
		a, err := e.store.Get(ctx, id)
		if err != nil {
			report.Failures = append(report.Failures, Failure{ID: id, Err: err})
			continue
		}
		a.TargetList, err = e.resolver.TargetList(ctx, a)
		if err == nil {
			err = e.index.Replace(ctx, a)
			if errors.IsNotFound(err) {
				err = e.index.Put(ctx, a)
			}
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{ID: id, Err: err})
			continue
		}
		report.Updated = append(report.Updated, id)
	}

	sort.Strings(report.Updated)
	e.log.Info("index_rebuilt",
		slog.Int("annotations", len(report.Updated)),
		slog.Int("failures", len(report.Failures)))
	return report, nil
}
