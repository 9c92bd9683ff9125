package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// SQLiteStore is the persistent Store backend. It mirrors the semantics of
// MemoryStore exactly; the target index lives in a relational table instead
// of an in-memory bucket map.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the store database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS annotations (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		created TIMESTAMP NOT NULL,
		modified TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS annotation_targets (
		target_id TEXT NOT NULL,
		annotation_id TEXT NOT NULL,
		PRIMARY KEY (target_id, annotation_id),
		FOREIGN KEY (annotation_id) REFERENCES annotations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_annotation_targets_target ON annotation_targets(target_id);

	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		items TEXT NOT NULL DEFAULT '[]'
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create store schema: %w", err)
	}
	return nil
}

// Add implements Store.
func (s *SQLiteStore) Add(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	stored := a.Clone()
	stored.ID = uuid.NewString()
	now := time.Now().UTC()
	stored.Created = now
	stored.Modified = now
	stored.TargetList = nil

	if err := s.writeAnnotation(ctx, stored, false); err != nil {
		return nil, err
	}
	return stored, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Annotation, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM annotations WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.AnnotationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query annotation: %w", err)
	}
	return decodeAnnotation(doc)
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, a *model.Annotation) (*model.Annotation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	updated := a.Clone()
	updated.Created = current.Created
	updated.Modified = time.Now().UTC()
	updated.TargetList = nil

	if err := s.writeAnnotation(ctx, updated, true); err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, id string) (*model.Annotation, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Target rows cascade.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete annotation: %w", err)
	}
	return a, nil
}

// ListIDs implements Store.
func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM annotations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list annotation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan annotation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByTarget implements Store.
func (s *SQLiteStore) GetByTarget(ctx context.Context, targetID string) ([]*model.Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.doc FROM annotations a
		JOIN annotation_targets t ON t.annotation_id = a.id
		WHERE t.target_id = ?
		ORDER BY a.id
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("query annotations by target: %w", err)
	}
	defer rows.Close()

	var out []*model.Annotation
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a, err := decodeAnnotation(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// writeAnnotation upserts the annotation row and rebuilds its target rows
// in one transaction.
func (s *SQLiteStore) writeAnnotation(ctx context.Context, a *model.Annotation, replace bool) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx,
			`UPDATE annotations SET doc = ?, modified = ? WHERE id = ?`,
			string(doc), a.Modified, a.ID); err != nil {
			return fmt.Errorf("update annotation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM annotation_targets WHERE annotation_id = ?`, a.ID); err != nil {
			return fmt.Errorf("clear target rows: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO annotations (id, doc, created, modified) VALUES (?, ?, ?, ?)`,
			a.ID, string(doc), a.Created, a.Modified); err != nil {
			return fmt.Errorf("insert annotation: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO annotation_targets (target_id, annotation_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare target insert: %w", err)
	}
	defer stmt.Close()
	for _, targetID := range a.TargetIDs() {
		if _, err := stmt.ExecContext(ctx, targetID, a.ID); err != nil {
			return fmt.Errorf("insert target row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func decodeAnnotation(doc string) (*model.Annotation, error) {
	var a model.Annotation
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return nil, fmt.Errorf("decode stored annotation: %w", err)
	}
	return &a, nil
}
