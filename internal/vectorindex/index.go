package vectorindex

import (
	"context"
	"math"

	"guardian-rag/internal/models"
)

// SearchHit is one nearest-neighbour candidate. Score is raw cosine
// similarity in [-1,1]; the retriever owns normalization and thresholding.
type SearchHit struct {
	ChunkID       string
	DocumentID    string
	SequenceIndex int
	Span          models.CharSpan
	Text          string
	Score         float64
}

// Filter restricts a query to chunks the predicate accepts.
type Filter func(chunk models.Chunk) bool

// Index stores chunk embeddings with their metadata. The index exclusively
// owns embeddings once upserted; callers only read query results.
//
// Replacing a document's chunk set is atomic with respect to concurrent
// queries: a reader sees either the old complete set or the new complete
// set, never a partial view. Writes to the same document are mutually
// exclusive; writes to different documents may proceed concurrently with
// reads.
type Index interface {
	// Upsert inserts chunks, replacing any existing chunk with the same ID.
	Upsert(ctx context.Context, chunks []models.Chunk) error
	// ReplaceDocument atomically swaps the complete chunk set of a document.
	ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk) error
	// Query returns up to k hits ordered by descending similarity. Ties are
	// broken by lower sequence index, then lexicographic chunk ID.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error)
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, in [-1,1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// hitLess is the deterministic result ordering: descending score, then
// ascending sequence index, then lexicographic chunk ID.
func hitLess(a, b SearchHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SequenceIndex != b.SequenceIndex {
		return a.SequenceIndex < b.SequenceIndex
	}
	return a.ChunkID < b.ChunkID
}
