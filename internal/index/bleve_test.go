package index

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

func newMemIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexedAnnotation(id string, targets ...model.Target) *model.Annotation {
	return &model.Annotation{
		ID:         id,
		Type:       "Annotation",
		Targets:    targets,
		TargetList: targets,
		Extra: map[string]json.RawMessage{
			"motivation": json.RawMessage(`"classifying"`),
		},
	}
}

func TestBleveIndex_PutAndGet(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:vangogh:testletter", Type: "Letter"})

	require.NoError(t, idx.Put(context.Background(), a))

	got, err := idx.Get(context.Background(), "anno-1", "Annotation")
	require.NoError(t, err)
	assert.Equal(t, "anno-1", got.ID)
	assert.Equal(t, "Annotation", got.Type)
	assert.JSONEq(t, `"classifying"`, string(got.Extra["motivation"]))
}

func TestBleveIndex_Put_RejectsDuplicateID(t *testing.T) {
	// Given: an indexed annotation
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:r1", Type: "Letter"})
	require.NoError(t, idx.Put(context.Background(), a))

	// When: putting the same id again
	err := idx.Put(context.Background(), a)

	// Then: the second put fails with a conflict
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "annotation with id anno-1 already exists")

	// And: the document count is unchanged by the failed attempt
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestBleveIndex_Get_FailsForUnknownID(t *testing.T) {
	idx := newMemIndex(t)

	_, err := idx.Get(context.Background(), "ghost", "Annotation")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "annotation with id ghost does not exist")
}

func TestBleveIndex_Replace_FailsForUnknownID(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("ghost", model.Target{ID: "urn:r1"})

	err := idx.Replace(context.Background(), a)
	assert.True(t, errors.IsNotFound(err))
}

func TestBleveIndex_Replace_OverwritesTargetList(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:r1", Type: "Letter"})
	require.NoError(t, idx.Put(context.Background(), a))

	a.TargetList = []model.Target{{ID: "urn:r2", Type: "Letter"}}
	require.NoError(t, idx.Replace(context.Background(), a))

	stale, err := idx.QueryByTarget(context.Background(), Criteria{TargetID: "urn:r1"})
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := idx.QueryByTarget(context.Background(), Criteria{TargetID: "urn:r2"})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "anno-1", fresh[0].ID)
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:r1"})
	require.NoError(t, idx.Put(context.Background(), a))

	require.NoError(t, idx.Delete(context.Background(), "anno-1", "Annotation"))

	_, err := idx.Get(context.Background(), "anno-1", "Annotation")
	assert.True(t, errors.IsNotFound(err))

	err = idx.Delete(context.Background(), "anno-1", "Annotation")
	assert.True(t, errors.IsNotFound(err))
}

func TestBleveIndex_QueryByTarget_MatchesAncestorIDs(t *testing.T) {
	// Given: an annotation whose target closure spans a chain
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-2",
		model.Target{ID: "anno-1", Type: model.AnnotationType})
	a.TargetList = []model.Target{
		{ID: "anno-1", Type: model.AnnotationType},
		{ID: "urn:vangogh:testletter", Type: "Letter"},
	}
	require.NoError(t, idx.Put(context.Background(), a))

	// Then: querying any ancestor id finds it
	for _, targetID := range []string{"anno-1", "urn:vangogh:testletter"} {
		hits, err := idx.QueryByTarget(context.Background(), Criteria{TargetID: targetID})
		require.NoError(t, err)
		require.Len(t, hits, 1, "target %s", targetID)
		assert.Equal(t, "anno-2", hits[0].ID)
	}
}

func TestBleveIndex_QueryByTarget_MatchesAncestorType(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:r1", Type: "Letter"})
	require.NoError(t, idx.Put(context.Background(), a))

	hits, err := idx.QueryByTarget(context.Background(), Criteria{TargetType: "Letter"})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = idx.QueryByTarget(context.Background(), Criteria{TargetType: "Sculpture"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBleveIndex_QueryByTarget_CombinesIDAndType(t *testing.T) {
	idx := newMemIndex(t)
	require.NoError(t, idx.Put(context.Background(),
		indexedAnnotation("anno-1", model.Target{ID: "urn:r1", Type: "Letter"})))
	require.NoError(t, idx.Put(context.Background(),
		indexedAnnotation("anno-2", model.Target{ID: "urn:r1", Type: "Sketch"})))

	hits, err := idx.QueryByTarget(context.Background(), Criteria{TargetID: "urn:r1", TargetType: "Letter"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "anno-1", hits[0].ID)
}

func TestBleveIndex_QueryByTarget_RejectsEmptyCriteria(t *testing.T) {
	idx := newMemIndex(t)

	_, err := idx.QueryByTarget(context.Background(), Criteria{})
	assert.True(t, errors.IsValidation(err))
}

func TestBleveIndex_FindByID_SearchesAcrossPartitions(t *testing.T) {
	idx := newMemIndex(t)
	a := indexedAnnotation("anno-1", model.Target{ID: "urn:r1"})
	a.Type = "Highlight"
	require.NoError(t, idx.Put(context.Background(), a))

	got, err := idx.FindByID(context.Background(), "anno-1")
	require.NoError(t, err)
	assert.Equal(t, "Highlight", got.Type)

	_, err = idx.FindByID(context.Background(), "ghost")
	assert.True(t, errors.IsNotFound(err))
}

func TestBleveIndex_OnDisk_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/annotations.bleve"

	idx, err := NewBleveIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Put(context.Background(),
		indexedAnnotation("anno-1", model.Target{ID: "urn:r1", Type: "Letter"})))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveIndex(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(context.Background(), "anno-1", "Annotation")
	require.NoError(t, err)
	assert.Equal(t, "anno-1", got.ID)
}
