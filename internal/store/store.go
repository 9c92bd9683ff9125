// Package store provides the primary annotation store: the authoritative
// source of truth for annotation and collection lifecycle. The search index
// is a derived projection of this store and can always be rebuilt from it.
//
// Two backends implement the same contract: an in-memory map (the default)
// and a SQLite database for deployments that want the store itself to
// survive restarts.
package store

import (
	"context"

	"github.com/annolab/annostore/internal/model"
)

// Store is the authoritative annotation store.
//
// Implementations enforce at-most-one writer per annotation id; callers get
// copies on read and never observe in-flight mutations. The store only
// tracks *direct* targets; chain-following lookups are the search index's
// job.
type Store interface {
	// Add validates the annotation, assigns a new unique id, sets the
	// created/modified timestamps, and records its direct targets in the
	// target index. Returns the stored record including the assigned id.
	Add(ctx context.Context, a *model.Annotation) (*model.Annotation, error)

	// Get returns a copy of the stored record.
	Get(ctx context.Context, id string) (*model.Annotation, error)

	// Update replaces all stored fields except id and created, refreshes
	// modified, and recomputes the target index entries.
	Update(ctx context.Context, a *model.Annotation) (*model.Annotation, error)

	// Remove deletes the record and every target index entry referencing
	// it, returning the removed record.
	Remove(ctx context.Context, id string) (*model.Annotation, error)

	// ListIDs enumerates all stored annotation ids.
	ListIDs(ctx context.Context) ([]string, error)

	// GetByTarget returns every record whose direct target list contains
	// targetID.
	GetByTarget(ctx context.Context, targetID string) ([]*model.Annotation, error)

	// CreateCollection creates a new, empty collection with the given label.
	CreateCollection(ctx context.Context, label string) (*model.Collection, error)

	// GetCollection returns a copy of the collection.
	GetCollection(ctx context.Context, id string) (*model.Collection, error)

	// AddToCollection appends an annotation id to the collection. Adding an
	// already-present id is a no-op.
	AddToCollection(ctx context.Context, annotationID, collectionID string) error

	// RemoveFromCollection removes an annotation id from the collection.
	RemoveFromCollection(ctx context.Context, annotationID, collectionID string) error

	// DeleteCollection removes the collection. Member annotations are not
	// deleted.
	DeleteCollection(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
