package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// MemoryStore is the in-memory Store backend. It keeps annotations in a map
// keyed by id and maintains target-index buckets (target id -> annotation
// ids) for lightweight same-process queries by direct target.
type MemoryStore struct {
	mu          sync.RWMutex
	annotations map[string]*model.Annotation
	targetIndex map[string]map[string]bool
	collections map[string]*model.Collection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		annotations: make(map[string]*model.Annotation),
		targetIndex: make(map[string]map[string]bool),
		collections: make(map[string]*model.Collection),
	}
}

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := a.Clone()
	stored.ID = uuid.NewString()
	now := time.Now().UTC()
	stored.Created = now
	stored.Modified = now
	stored.TargetList = nil // derived field, never stored

	s.annotations[stored.ID] = stored
	s.indexTargets(stored)
	return stored.Clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.annotations[id]
	if !ok {
		return nil, errors.AnnotationNotFound(id)
	}
	return a.Clone(), nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.annotations[a.ID]
	if !ok {
		return nil, errors.AnnotationNotFound(a.ID)
	}

	s.unindexTargets(current)
	updated := a.Clone()
	updated.Created = current.Created
	updated.Modified = time.Now().UTC()
	updated.TargetList = nil

	s.annotations[updated.ID] = updated
	s.indexTargets(updated)
	return updated.Clone(), nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(ctx context.Context, id string) (*model.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.annotations[id]
	if !ok {
		return nil, errors.AnnotationNotFound(id)
	}
	s.unindexTargets(a)
	delete(s.annotations, id)
	return a.Clone(), nil
}

// ListIDs implements Store. The result is sorted for determinism.
func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.annotations))
	for id := range s.annotations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// GetByTarget implements Store.
func (s *MemoryStore) GetByTarget(ctx context.Context, targetID string) ([]*model.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.targetIndex[targetID]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*model.Annotation, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.annotations[id]; ok {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// indexTargets records a's id in the bucket of every direct target.
// Callers must hold the write lock.
func (s *MemoryStore) indexTargets(a *model.Annotation) {
	for _, targetID := range a.TargetIDs() {
		bucket, ok := s.targetIndex[targetID]
		if !ok {
			bucket = make(map[string]bool)
			s.targetIndex[targetID] = bucket
		}
		bucket[a.ID] = true
	}
}

// unindexTargets removes a's id from its target buckets, dropping buckets
// that become empty. Callers must hold the write lock.
func (s *MemoryStore) unindexTargets(a *model.Annotation) {
	for _, targetID := range a.TargetIDs() {
		bucket, ok := s.targetIndex[targetID]
		if !ok {
			continue
		}
		delete(bucket, a.ID)
		if len(bucket) == 0 {
			delete(s.targetIndex, targetID)
		}
	}
}

// targetBucketCount reports the number of non-empty target buckets.
func (s *MemoryStore) targetBucketCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targetIndex)
}
