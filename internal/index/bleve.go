package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gofrs/flock"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// BleveIndex implements Index on top of a Bleve document index. Target ids
// and types are indexed as exact keyword terms; the full annotation JSON is
// stored (not indexed) so query hits can be decoded back into records.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	lock   *flock.Flock
	closed bool
}

// bleveDoc is the document structure for Bleve indexing.
type bleveDoc struct {
	ID          string   `json:"id"`
	DocType     string   `json:"doc_type"`
	TargetIDs   []string `json:"target_ids"`
	TargetTypes []string `json:"target_types"`
	Source      string   `json:"source"`
}

// NewBleveIndex creates or opens a Bleve-backed index. If path is empty the
// index lives in memory, which is what the tests use. On-disk indexes are
// guarded by a file lock so two processes cannot write the same index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	var lock *flock.Flock
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}

		lock = flock.New(path + ".lock")
		locked, lockErr := lock.TryLock()
		if lockErr != nil {
			return nil, fmt.Errorf("acquire index lock: %w", lockErr)
		}
		if !locked {
			return nil, fmt.Errorf("index at %s is locked by another process", path)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("open index: %w", err)
	}

	slog.Debug("index_opened", slog.String("path", path), slog.Bool("in_memory", path == ""))
	return &BleveIndex{index: idx, path: path, lock: lock}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"id", "doc_type", "target_ids", "target_types"} {
		keyword := bleve.NewKeywordFieldMapping()
		keyword.IncludeInAll = false
		docMapping.AddFieldMappingsAt(field, keyword)
	}

	// The source document is stored for retrieval, never searched.
	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source", source)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}

// docKey builds the partitioned document key.
func docKey(partition, id string) string {
	return partition + "::" + id
}

// Put implements Index.
func (b *BleveIndex) Put(ctx context.Context, a *model.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed()
	}

	exists, err := b.exists(ctx, docKey(a.Type, a.ID))
	if err != nil {
		return err
	}
	if exists {
		return errors.AnnotationExists(a.ID)
	}
	return b.write(a)
}

// Replace implements Index.
func (b *BleveIndex) Replace(ctx context.Context, a *model.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed()
	}

	exists, err := b.exists(ctx, docKey(a.Type, a.ID))
	if err != nil {
		return err
	}
	if !exists {
		return errors.AnnotationNotFound(a.ID)
	}
	return b.write(a)
}

// write indexes the annotation document. Callers must hold the write lock.
func (b *BleveIndex) write(a *model.Annotation) error {
	source, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode annotation for indexing: %w", err)
	}

	doc := bleveDoc{
		ID:      a.ID,
		DocType: a.Type,
		Source:  string(source),
	}
	for _, t := range a.TargetList {
		doc.TargetIDs = append(doc.TargetIDs, t.ID)
		if t.Type != "" {
			doc.TargetTypes = append(doc.TargetTypes, t.Type)
		}
	}

	if err := b.index.Index(docKey(a.Type, a.ID), doc); err != nil {
		return errors.Wrap("index annotation document", err)
	}
	return nil
}

// Get implements Index.
func (b *BleveIndex) Get(ctx context.Context, id, partition string) (*model.Annotation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed()
	}

	q := query.NewDocIDQuery([]string{docKey(partition, id)})
	hits, err := b.searchAnnotations(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, errors.AnnotationNotFound(id)
	}
	return hits[0], nil
}

// FindByID implements Index.
func (b *BleveIndex) FindByID(ctx context.Context, id string) (*model.Annotation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed()
	}

	q := bleve.NewTermQuery(id)
	q.SetField("id")
	hits, err := b.searchAnnotations(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, errors.AnnotationNotFound(id)
	}
	return hits[0], nil
}

// Delete implements Index.
func (b *BleveIndex) Delete(ctx context.Context, id, partition string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed()
	}

	key := docKey(partition, id)
	exists, err := b.exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return errors.AnnotationNotFound(id)
	}
	if err := b.index.Delete(key); err != nil {
		return errors.Wrap("delete annotation document", err)
	}
	return nil
}

// QueryByTarget implements Index.
func (b *BleveIndex) QueryByTarget(ctx context.Context, c Criteria) ([]*model.Annotation, error) {
	if c.TargetID == "" && c.TargetType == "" {
		return nil, errors.New(errors.KindValidation, "target query MUST specify an id or a type")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed()
	}

	conjuncts := make([]query.Query, 0, 2)
	if c.TargetID != "" {
		q := bleve.NewTermQuery(c.TargetID)
		q.SetField("target_ids")
		conjuncts = append(conjuncts, q)
	}
	if c.TargetType != "" {
		q := bleve.NewTermQuery(c.TargetType)
		q.SetField("target_types")
		conjuncts = append(conjuncts, q)
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, errors.Wrap("count documents", err)
	}
	return b.searchAnnotations(ctx, bleve.NewConjunctionQuery(conjuncts...), int(count))
}

// searchAnnotations runs the query and decodes each hit's stored source.
// Callers must hold at least the read lock.
func (b *BleveIndex) searchAnnotations(ctx context.Context, q query.Query, size int) ([]*model.Annotation, error) {
	if size <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"source"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap("search index", err)
	}

	out := make([]*model.Annotation, 0, len(res.Hits))
	for _, hit := range res.Hits {
		source, ok := hit.Fields["source"].(string)
		if !ok {
			return nil, errors.Newf(errors.KindInternal, "document %s has no stored source", hit.ID)
		}
		var a model.Annotation
		if err := json.Unmarshal([]byte(source), &a); err != nil {
			return nil, errors.Wrap(fmt.Sprintf("decode indexed document %s", hit.ID), err)
		}
		out = append(out, &a)
	}
	return out, nil
}

// exists reports whether a document key is present.
func (b *BleveIndex) exists(ctx context.Context, key string) (bool, error) {
	req := bleve.NewSearchRequest(query.NewDocIDQuery([]string{key}))
	req.Size = 1

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return false, errors.Wrap("check document existence", err)
	}
	return res.Total > 0, nil
}

// DocCount implements Index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, errClosed()
	}
	return b.index.DocCount()
}

// Close implements Index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.index.Close()
	if b.lock != nil {
		if unlockErr := b.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

func errClosed() error {
	return errors.New(errors.KindInternal, "index is closed")
}
