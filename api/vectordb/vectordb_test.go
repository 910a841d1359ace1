package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/quizforge/api/models"
)

func newTestIndex(t *testing.T, vectors [][]float32) *Index {
	t.Helper()

	segments := make([]models.Segment, len(vectors))
	for i := range vectors {
		segments[i] = models.Segment{ID: i, Page: i + 1, Text: string(rune('a' + i))}
	}

	store, err := NewStore("")
	require.NoError(t, err)
	index, err := store.Build(context.Background(), "test", segments, vectors)
	require.NoError(t, err)
	return index
}

func segmentIDs(segments []models.Segment) []int {
	ids := make([]int, len(segments))
	for i, seg := range segments {
		ids[i] = seg.ID
	}
	return ids
}

func TestBuildEmptyIndex(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	_, err = store.Build(context.Background(), "test", nil, nil)
	assert.ErrorIs(t, err, models.ErrEmptyIndex)
}

func TestBuildMismatchedInput(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	segments := []models.Segment{{ID: 0, Text: "a"}, {ID: 1, Text: "b"}}

	_, err = store.Build(context.Background(), "test", segments, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	// Inconsistent dimensions
	_, err = store.Build(context.Background(), "test", segments, [][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestQueryOrdersByDescendingSimilarity(t *testing.T) {
	index := newTestIndex(t, [][]float32{
		{0, 1}, // orthogonal to the query
		{1, 0}, // identical to the query
		{1, 1}, // 45 degrees off
	})

	got, err := index.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, segmentIDs(got))
}

func TestQueryBreaksTiesByLowerSegmentID(t *testing.T) {
	// Segments 1 and 2 have identical vectors; 2 is inserted with the same
	// similarity but a higher ID, so 1 must come first.
	index := newTestIndex(t, [][]float32{
		{1, 1},
		{1, 0},
		{1, 0},
	})

	got, err := index.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, segmentIDs(got))

	// The tie-break also decides which segment survives the k cutoff.
	got, err = index.Query(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, segmentIDs(got))
}

func TestQueryClampsK(t *testing.T) {
	index := newTestIndex(t, [][]float32{
		{1, 0},
		{0, 1},
	})

	got, err := index.Query(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, index.Size())
}

func TestQueryRejectsBadInput(t *testing.T) {
	index := newTestIndex(t, [][]float32{{1, 0}})

	_, err := index.Query(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	_, err = index.Query(context.Background(), []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestBuildReplacesCollection(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	first := []models.Segment{{ID: 0, Text: "old"}}
	_, err = store.Build(context.Background(), "session", first, [][]float32{{1, 0}})
	require.NoError(t, err)

	second := []models.Segment{{ID: 0, Text: "new"}, {ID: 1, Text: "also new"}}
	index, err := store.Build(context.Background(), "session", second, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, index.Size())

	got, err := index.Query(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].Text)
}
