package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annolab/annostore/internal/errors"
	"github.com/annolab/annostore/internal/model"
)

// vincentAnnotation mirrors the canonical test record: an annotation on a
// Van Gogh letter with metadata the store treats as opaque.
func vincentAnnotation() *model.Annotation {
	return &model.Annotation{
		Type: "Annotation",
		Targets: []model.Target{
			{ID: "urn:vangogh:testletter", Type: "Letter"},
		},
		Extra: map[string]json.RawMessage{
			"motivation": json.RawMessage(`"classifying"`),
			"creator":    json.RawMessage(`"marijn"`),
		},
	}
}

// runForEachBackend runs the test against both store backends.
func runForEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer func() { _ = s.Close() }()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "annostore.db"))
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		fn(t, s)
	})
}

func TestStore_Add_RejectsAnnotationWithoutTarget(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.Add(context.Background(), &model.Annotation{Type: "Annotation"})

		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Contains(t, err.Error(), "annotation MUST have at least one target")
	})
}

func TestStore_Add_AssignsIDAndTimestamps(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		stored, err := s.Add(context.Background(), vincentAnnotation())
		require.NoError(t, err)

		assert.NotEmpty(t, stored.ID)
		assert.False(t, stored.Created.IsZero())
		assert.False(t, stored.Modified.IsZero())

		ids, err := s.ListIDs(context.Background())
		require.NoError(t, err)
		assert.Len(t, ids, 1)
	})
}

func TestStore_Get_ReturnsStoredRecordByID(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		stored, err := s.Add(context.Background(), vincentAnnotation())
		require.NoError(t, err)

		got, err := s.Get(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
		assert.JSONEq(t, `"classifying"`, string(got.Extra["motivation"]))
	})
}

func TestStore_Get_FailsForUnknownID(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "nope")

		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Contains(t, err.Error(), "annotation with id nope does not exist")
	})
}

func TestStore_GetByTarget_FindsAnnotationForEveryDirectTarget(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		a := vincentAnnotation()
		a.Targets = append(a.Targets, model.Target{ID: "urn:vangogh:testletter:p.5", Type: "ParagraphInLetter"})
		stored, err := s.Add(context.Background(), a)
		require.NoError(t, err)

		for _, targetID := range stored.TargetIDs() {
			matches, err := s.GetByTarget(context.Background(), targetID)
			require.NoError(t, err)

			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.ID
			}
			assert.Contains(t, ids, stored.ID, "target %s", targetID)
		}
	})
}

func TestStore_Update_RefreshesModifiedAndTargetIndex(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		stored, err := s.Add(context.Background(), vincentAnnotation())
		require.NoError(t, err)

		stored.Targets = []model.Target{{ID: "urn:vangogh:otherletter", Type: "Letter"}}
		stored.Extra["motivation"] = json.RawMessage(`"linking"`)
		updated, err := s.Update(context.Background(), stored)
		require.NoError(t, err)

		assert.Equal(t, stored.ID, updated.ID)
		assert.True(t, updated.Created.Equal(stored.Created))
		assert.False(t, updated.Modified.Before(stored.Modified))

		// Old bucket is gone, new bucket contains the id.
		old, err := s.GetByTarget(context.Background(), "urn:vangogh:testletter")
		require.NoError(t, err)
		assert.Empty(t, old)

		fresh, err := s.GetByTarget(context.Background(), "urn:vangogh:otherletter")
		require.NoError(t, err)
		require.Len(t, fresh, 1)
		assert.Equal(t, stored.ID, fresh[0].ID)
	})
}

func TestStore_Update_FailsForUnknownID(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		a := vincentAnnotation()
		a.ID = "ghost"

		_, err := s.Update(context.Background(), a)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestStore_Remove_DeletesRecordAndTargetEntries(t *testing.T) {
	runForEachBackend(t, func(t *testing.T, s Store) {
		stored, err := s.Add(context.Background(), vincentAnnotation())
		require.NoError(t, err)

		removed, err := s.Remove(context.Background(), stored.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `"classifying"`, string(removed.Extra["motivation"]))

		_, err = s.Get(context.Background(), stored.ID)
		assert.True(t, errors.IsNotFound(err))

		ids, err := s.ListIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)

		matches, err := s.GetByTarget(context.Background(), "urn:vangogh:testletter")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestMemoryStore_Remove_DropsEmptyTargetBuckets(t *testing.T) {
	s := NewMemoryStore()
	stored, err := s.Add(context.Background(), vincentAnnotation())
	require.NoError(t, err)
	require.Equal(t, 1, s.targetBucketCount())

	_, err = s.Remove(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.targetBucketCount())
}

func TestMemoryStore_Remove_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	stored, err := s.Add(context.Background(), vincentAnnotation())
	require.NoError(t, err)
	internal := s.annotations[stored.ID]

	removed, err := s.Remove(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotSame(t, internal, removed)

	removed.Targets[0].ID = "urn:mutated"
	assert.Equal(t, "urn:vangogh:testletter", internal.Targets[0].ID)
}

func TestMemoryStore_Get_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	stored, err := s.Add(context.Background(), vincentAnnotation())
	require.NoError(t, err)

	got, err := s.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	got.Targets[0].ID = "urn:mutated"

	again, err := s.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "urn:vangogh:testletter", again.Targets[0].ID)
}
