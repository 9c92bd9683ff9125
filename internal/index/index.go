// Package index provides the search index adapter: a thin contract over a
// document index partitioned by annotation type, optimized for target-based
// lookup. The index is a derived projection of the primary store, never the
// source of truth for existence or content.
//
// Consistency contract: writes are not guaranteed to be visible to
// immediately subsequent queries. Callers must treat an empty query result
// shortly after a write as possibly stale, not as proof of absence.
package index

import (
	"context"

	"github.com/annolab/annostore/internal/model"
)

// Criteria selects indexed annotations by values in their target closure.
// At least one of TargetID and TargetType must be set; when both are set,
// a document must match both.
type Criteria struct {
	// TargetID matches documents whose target_list contains this id,
	// i.e. annotations that directly or transitively target it.
	TargetID string

	// TargetType matches documents whose target_list contains an entry of
	// this type.
	TargetType string
}

// Index is the search index adapter contract.
type Index interface {
	// Put creates the document for the annotation in the partition of its
	// type, with the resolved target list attached. Fails with a conflict
	// error if a document with this id already exists in the partition.
	Put(ctx context.Context, a *model.Annotation) error

	// Get returns the document with the given id from the given partition.
	Get(ctx context.Context, id, partition string) (*model.Annotation, error)

	// Replace overwrites the existing document, re-attaching the resolved
	// target list. Fails with a not-found error if the document is absent.
	Replace(ctx context.Context, a *model.Annotation) error

	// Delete removes the document. Fails with a not-found error if absent.
	Delete(ctx context.Context, id, partition string) error

	// FindByID looks the document up across all partitions.
	FindByID(ctx context.Context, id string) (*model.Annotation, error)

	// QueryByTarget returns all documents whose target list matches the
	// criteria.
	QueryByTarget(ctx context.Context, c Criteria) ([]*model.Annotation, error)

	// DocCount returns the number of indexed documents.
	DocCount() (uint64, error)

	// Close releases the index.
	Close() error
}
