package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// CreateCollection implements Store.
func (s *MemoryStore) CreateCollection(ctx context.Context, label string) (*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &model.Collection{ID: uuid.NewString(), Label: label}
	s.collections[c.ID] = c
	return c.Clone(), nil
}

// GetCollection implements Store.
func (s *MemoryStore) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[id]
	if !ok {
		return nil, errors.CollectionNotFound(id)
	}
	return c.Clone(), nil
}

// AddToCollection implements Store.
func (s *MemoryStore) AddToCollection(ctx context.Context, annotationID, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collectionID]
	if !ok {
		return errors.CollectionNotFound(collectionID)
	}
	if _, ok := s.annotations[annotationID]; !ok {
		return errors.AnnotationNotFound(annotationID)
	}
	c.AddItem(annotationID)
	return nil
}

// RemoveFromCollection implements Store.
func (s *MemoryStore) RemoveFromCollection(ctx context.Context, annotationID, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collectionID]
	if !ok {
		return errors.CollectionNotFound(collectionID)
	}
	c.RemoveItem(annotationID)
	return nil
}

// DeleteCollection implements Store.
func (s *MemoryStore) DeleteCollection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[id]; !ok {
		return errors.CollectionNotFound(id)
	}
	delete(s.collections, id)
	return nil
}
