package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessagesNameOffendingID(t *testing.T) {
	err := AnnotationNotFound("anno-1")
	assert.Equal(t, "annotation with id anno-1 does not exist", err.Message)
	assert.Equal(t, "anno-1", err.ID)

	err = AnnotationExists("anno-1")
	assert.Equal(t, "annotation with id anno-1 already exists", err.Message)

	err = CollectionNotFound("coll-1")
	assert.Equal(t, "collection with id coll-1 does not exist", err.Message)
}

func TestError_KindPredicates(t *testing.T) {
	assert.True(t, IsNotFound(AnnotationNotFound("x")))
	assert.True(t, IsConflict(AnnotationExists("x")))
	assert.True(t, IsValidation(New(KindValidation, "annotation MUST have at least one target")))

	assert.False(t, IsNotFound(AnnotationExists("x")))
	assert.False(t, IsConflict(nil))
}

func TestError_PredicatesSeeThroughWrapping(t *testing.T) {
	// Given: a not-found error wrapped by plain fmt wrapping
	inner := AnnotationNotFound("anno-2")
	wrapped := fmt.Errorf("during propagation: %w", inner)

	// Then: predicates still classify it
	assert.True(t, IsNotFound(wrapped))

	// And: errors.Is matches by kind
	assert.True(t, stderrors.Is(wrapped, &Error{Kind: KindNotFound}))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap("index write failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "index write failed")
	assert.Contains(t, err.Error(), "disk on fire")
}
