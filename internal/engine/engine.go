// Package engine combines the primary store, the search index adapter, and
// the chain resolver into the annotation store's mutation engine. Every
// index-affecting mutation (add, update, remove) first lands in the primary
// store, then writes the mutated annotation's own index document, then
// propagates outward to every indexed annotation whose target chain passes
// through the mutated one.
package engine

import (
	"context"
	"log/slog"

	"github.com/annolab/annostore/internal/chain"
	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/index"
	"github.com/annolab/annostore/internal/model"
	"github.com/annolab/annostore/internal/store"
)

// DefaultWorkers is the default concurrency of the dependent sweep.
const DefaultWorkers = 4

// Engine executes annotation mutations with chain propagation.
type Engine struct {
	store    store.Store
	index    index.Index
	resolver *chain.Resolver
	log      *slog.Logger
	maxDepth int
	workers  int
	retry    errors.RetryConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMaxDepth bounds both chain resolution and the propagation sweep.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithWorkers sets the concurrency of the dependent sweep.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetry sets the retry policy for dependent-set queries against the
// eventually consistent index.
func WithRetry(cfg errors.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// New creates an engine over the given store and index. Chain lookups go to
// the index first and fall back to the primary store, matching where the
// freshest resolvable copy lives after each write.
func New(st store.Store, idx index.Index, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		index:    idx,
		log:      slog.Default(),
		maxDepth: chain.DefaultMaxDepth,
		workers:  DefaultWorkers,
		retry:    errors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = chain.NewResolver(
		chain.LookupFunc(e.lookupAnnotation),
		chain.WithMaxDepth(e.maxDepth),
		chain.WithLogger(e.log),
	)
	return e
}

func (e *Engine) lookupAnnotation(ctx context.Context, id string) (*model.Annotation, error) {
	a, err := e.index.FindByID(ctx, id)
	if err == nil {
		return a, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return e.store.Get(ctx, id)
}

// Add validates and stores a new annotation, indexes it with its resolved
// target list, and sweeps annotations that already referenced the new id.
// The returned report covers only the dependent sweep; the primary write
// either fully succeeded or the error return is non-nil.
func (e *Engine) Add(ctx context.Context, a *model.Annotation) (*model.Annotation, *Report, error) {
	stored, err := e.store.Add(ctx, a)
	if err != nil {
		return nil, nil, err
	}

	e.resolver.Flush()
	stored.TargetList, err = e.resolver.TargetList(ctx, stored)
	if err == nil {
		err = e.index.Put(ctx, stored)
	}
	if err != nil {
		// The index write is part of the primary mutation: undo the store
		// insert so the two never disagree about existence.
		if _, rmErr := e.store.Remove(ctx, stored.ID); rmErr != nil {
			e.log.Error("add_rollback_failed",
				slog.String("annotation_id", stored.ID),
				slog.String("error", rmErr.Error()))
		}
		return nil, nil, err
	}

	e.log.Debug("annotation_added", slog.String("annotation_id", stored.ID))
	return stored, e.propagateFrom(ctx, stored.ID), nil
}

// Get returns the annotation, preferring the index document and falling
// back to the primary store.
func (e *Engine) Get(ctx context.Context, id string) (*model.Annotation, error) {
	return e.lookupAnnotation(ctx, id)
}

// QueryByTarget returns every indexed annotation whose target chain matches
// the criteria.
func (e *Engine) QueryByTarget(ctx context.Context, c index.Criteria) ([]*model.Annotation, error) {
	return e.index.QueryByTarget(ctx, c)
}

// Update replaces the stored annotation, rewrites its index document with a
// freshly resolved target list, and sweeps every annotation whose chain
// passed through it.
func (e *Engine) Update(ctx context.Context, a *model.Annotation) (*model.Annotation, *Report, error) {
	// Capture the current record and the dependent set before the direct
	// write: the record tells us which partition holds the old index
	// document, and the dependents are the annotations whose target_list
	// contained a's id going in.
	prev, err := e.store.Get(ctx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	deps, depErr := e.dependents(ctx, a.ID)

	updated, err := e.store.Update(ctx, a)
	if err != nil {
		return nil, nil, err
	}

	e.resolver.Flush()
	updated.TargetList, err = e.resolver.TargetList(ctx, updated)
	if err != nil {
		return nil, nil, err
	}
	if prev.Type != updated.Type {
		// Index keys are partition-scoped, so a retyped annotation moves
		// to a new document key; the old-partition document has to go or
		// it would survive with the stale target list.
		if err := e.index.Delete(ctx, updated.ID, prev.Type); err != nil && !errors.IsNotFound(err) {
			return nil, nil, err
		}
	}
	if err := e.index.Replace(ctx, updated); err != nil {
		if !errors.IsNotFound(err) {
			return nil, nil, err
		}
		// The index never saw this annotation (lagging or rebuilt from an
		// older snapshot); create the document instead.
		if err := e.index.Put(ctx, updated); err != nil {
			return nil, nil, err
		}
	}

	report := e.sweep(ctx, deps, depErr, a.ID)
	e.log.Debug("annotation_updated",
		slog.String("annotation_id", updated.ID),
		slog.Int("dependents_updated", len(report.Updated)),
		slog.Int("dependents_failed", len(report.Failures)))
	return updated, report, nil
}

// Remove deletes the annotation from store and index, then sweeps its
// former dependents so their chains resolve with the node absent: the
// removed annotation's own ancestors no longer propagate through it.
func (e *Engine) Remove(ctx context.Context, id string) (*model.Annotation, *Report, error) {
	// Dependents must be captured while the document still exists.
	deps, depErr := e.dependents(ctx, id)

	removed, err := e.store.Remove(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	e.resolver.Flush()
	if err := e.index.Delete(ctx, id, removed.Type); err != nil && !errors.IsNotFound(err) {
		return nil, nil, err
	}

	report := e.sweep(ctx, deps, depErr, id)
	e.log.Debug("annotation_removed",
		slog.String("annotation_id", id),
		slog.Int("dependents_updated", len(report.Updated)))
	return removed, report, nil
}

// propagateFrom queries the current dependents of id and sweeps them.
func (e *Engine) propagateFrom(ctx context.Context, id string) *Report {
	deps, err := e.dependents(ctx, id)
	return e.sweep(ctx, deps, err, id)
}
