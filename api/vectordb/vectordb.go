// Package vectordb provides nearest-neighbor retrieval over segment
// embeddings, backed by chromem-go. Collections are in-memory by default and
// persisted to disk when a path is configured.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"

	"github.com/local/quizforge/api/models"
)

// Store owns the underlying chromem database. One collection is built per
// session, so sessions never see each other's segments.
type Store struct {
	db *chromem.DB
}

// NewStore creates an in-memory store, or a persistent one when path is
// non-empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return &Store{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector database: %w", err)
	}
	return &Store{db: db}, nil
}

// Index is a queryable collection of segments and their embedding vectors.
type Index struct {
	collection *chromem.Collection
	segments   map[string]models.Segment
	size       int
	dimension  int
}

// Build constructs an index named name from segments and their vectors.
// An existing collection with the same name is replaced. The two slices must
// be parallel and non-empty, and all vectors must share one dimension.
func (s *Store) Build(ctx context.Context, name string, segments []models.Segment, vectors [][]float32) (*Index, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments to index", models.ErrEmptyIndex)
	}
	if len(segments) != len(vectors) {
		return nil, fmt.Errorf("%w: %d segments but %d vectors", models.ErrInvalidParameters, len(segments), len(vectors))
	}

	dimension := len(vectors[0])
	docs := make([]chromem.Document, len(segments))
	byID := make(map[string]models.Segment, len(segments))
	for i, seg := range segments {
		if len(vectors[i]) != dimension || dimension == 0 {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", models.ErrInvalidParameters, i, len(vectors[i]), dimension)
		}
		id := segmentKey(seg.ID)
		byID[id] = seg
		docs[i] = chromem.Document{
			ID:        id,
			Content:   seg.Text,
			Metadata:  map[string]string{"page": fmt.Sprintf("%d", seg.Page)},
			Embedding: normalize(vectors[i]),
		}
	}

	// Replace any previous collection for this session.
	_ = s.db.DeleteCollection(name)
	collection, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	return &Index{
		collection: collection,
		segments:   byID,
		size:       len(segments),
		dimension:  dimension,
	}, nil
}

// Drop removes the named collection, if present.
func (s *Store) Drop(name string) {
	_ = s.db.DeleteCollection(name)
}

// Size returns the number of indexed segments.
func (ix *Index) Size() int {
	return ix.size
}

// Query returns the k segments nearest to queryVec by cosine similarity, in
// decreasing similarity order. Equal similarities are ordered by ascending
// segment ID, so results are deterministic. k is clamped to the index size.
func (ix *Index) Query(ctx context.Context, queryVec []float32, k int) ([]models.Segment, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidParameters, k)
	}
	if len(queryVec) != ix.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, want %d", models.ErrInvalidParameters, len(queryVec), ix.dimension)
	}
	if k > ix.size {
		k = ix.size
	}

	// Rank the full collection so ties at the cutoff resolve by segment ID
	// instead of by chromem's internal ordering.
	results, err := ix.collection.QueryEmbedding(ctx, normalize(queryVec), ix.size, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	ranked := make([]models.Segment, 0, len(results))
	similarity := make(map[int]float32, len(results))
	for _, res := range results {
		seg, ok := ix.segments[res.ID]
		if !ok {
			continue
		}
		ranked = append(ranked, seg)
		similarity[seg.ID] = res.Similarity
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if similarity[ranked[i].ID] != similarity[ranked[j].ID] {
			return similarity[ranked[i].ID] > similarity[ranked[j].ID]
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func segmentKey(id int) string {
	return fmt.Sprintf("seg-%06d", id)
}

// normalize returns a unit-length copy of v so stored similarities are true
// cosine similarities.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
