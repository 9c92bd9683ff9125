// Package chain resolves annotation chains: sequences of annotations where
// each targets the next, terminating at a non-annotation resource. The
// resolver computes the transitive closure of target identifiers that the
// search index stores as an annotation's target_list.
package chain

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// Lookup fetches a stored annotation by id during chain resolution.
// The propagation engine wires this to the search index with the primary
// store as fallback.
type Lookup interface {
	LookupAnnotation(ctx context.Context, id string) (*model.Annotation, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, id string) (*model.Annotation, error)

// LookupAnnotation implements Lookup.
func (f LookupFunc) LookupAnnotation(ctx context.Context, id string) (*model.Annotation, error) {
	return f(ctx, id)
}

const (
	// DefaultMaxDepth bounds the chain walk. Sixteen levels is far deeper
	// than any annotation chain observed in practice.
	DefaultMaxDepth = 16

	// defaultCacheSize bounds the lookup cache. One ancestor annotation is
	// looked up once per dependent during a propagation sweep, so even a
	// small cache collapses most of the repeated fetches.
	defaultCacheSize = 512
)

// Resolver computes target closures by walking annotation-typed target
// edges breadth-first. A visited set makes the walk cycle-safe: a cycle in
// the reference graph is defective data, and the walk stops at the revisit
// instead of looping.
type Resolver struct {
	lookup   Lookup
	cache    *lru.Cache[string, *model.Annotation]
	maxDepth int
	log      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth overrides the traversal depth bound.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a resolver that fetches ancestors through lookup.
func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	cache, _ := lru.New[string, *model.Annotation](defaultCacheSize)
	r := &Resolver{
		lookup:   lookup,
		cache:    cache,
		maxDepth: DefaultMaxDepth,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flush drops the lookup cache. The engine flushes before every mutation so
// a sweep always resolves against current state, never cached state from a
// previous operation.
func (r *Resolver) Flush() {
	r.cache.Purge()
}

// TargetList computes the ordered, deduplicated closure of target
// identifiers for a: the annotation's own direct targets first, then
// ancestors in discovery order. Targets referencing annotations that cannot
// be found (dangling references, e.g. after a chain member was deleted)
// stay in the list unexpanded.
func (r *Resolver) TargetList(ctx context.Context, a *model.Annotation) ([]model.Target, error) {
	var closure []model.Target
	seen := make(map[string]bool)
	visited := map[string]bool{a.ID: true}

	var frontier []string
	appendTargets := func(targets []model.Target) {
		for _, t := range targets {
			if !seen[t.ID] {
				seen[t.ID] = true
				closure = append(closure, model.Target{ID: t.ID, Type: t.Type})
			}
			if t.IsAnnotation() && !visited[t.ID] {
				frontier = append(frontier, t.ID)
			}
		}
	}
	appendTargets(a.Targets)

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= r.maxDepth {
			r.log.Warn("chain_depth_bound_reached",
				slog.String("annotation_id", a.ID),
				slog.Int("max_depth", r.maxDepth))
			break
		}

		level := frontier
		frontier = nil
		for _, id := range level {
			if visited[id] {
				continue
			}
			visited[id] = true

			ancestor, err := r.fetch(ctx, id)
			if err != nil {
				if errors.IsNotFound(err) {
					// Dangling reference: the chain ends here.
					continue
				}
				return nil, err
			}
			appendTargets(ancestor.Targets)
		}
	}
	return closure, nil
}

func (r *Resolver) fetch(ctx context.Context, id string) (*model.Annotation, error) {
	if a, ok := r.cache.Get(id); ok {
		return a, nil
	}
	a, err := r.lookup.LookupAnnotation(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, a)
	return a, nil
}
