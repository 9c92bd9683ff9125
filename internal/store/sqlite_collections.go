package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// CreateCollection implements Store.
func (s *SQLiteStore) CreateCollection(ctx context.Context, label string) (*model.Collection, error) {
	c := &model.Collection{ID: uuid.NewString(), Label: label}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, label, items) VALUES (?, ?, '[]')`,
		c.ID, c.Label); err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	return c, nil
}

// GetCollection implements Store.
func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	var label, items string
	err := s.db.QueryRowContext(ctx,
		`SELECT label, items FROM collections WHERE id = ?`, id).Scan(&label, &items)
	if err == sql.ErrNoRows {
		return nil, errors.CollectionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	c := &model.Collection{ID: id, Label: label}
	if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
		return nil, fmt.Errorf("decode collection items: %w", err)
	}
	return c, nil
}

// AddToCollection implements Store.
func (s *SQLiteStore) AddToCollection(ctx context.Context, annotationID, collectionID string) error {
	if _, err := s.Get(ctx, annotationID); err != nil {
		return err
	}
	return s.mutateCollection(ctx, collectionID, func(c *model.Collection) {
		c.AddItem(annotationID)
	})
}

// RemoveFromCollection implements Store.
func (s *SQLiteStore) RemoveFromCollection(ctx context.Context, annotationID, collectionID string) error {
	return s.mutateCollection(ctx, collectionID, func(c *model.Collection) {
		c.RemoveItem(annotationID)
	})
}

// DeleteCollection implements Store.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if n == 0 {
		return errors.CollectionNotFound(id)
	}
	return nil
}

func (s *SQLiteStore) mutateCollection(ctx context.Context, id string, mutate func(*model.Collection)) error {
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	mutate(c)

	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encode collection items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE collections SET items = ? WHERE id = ?`, string(items), id); err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return nil
}
