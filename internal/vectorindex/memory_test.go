package vectorindex

import (
	"context"
	"errors"
	"sync"
	"testing"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testChunk(id, docID string, seq int, text string, embedding []float32) models.Chunk {
	return models.Chunk{
		ID:            id,
		DocumentID:    docID,
		SequenceIndex: seq,
		Span:          models.CharSpan{Start: seq * 100, End: seq*100 + 50},
		Text:          text,
		Embedding:     embedding,
	}
}

func TestMemoryIndex_UpsertAndQuery(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	err := index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "windscreen excess", []float32{1, 0}),
		testChunk("doc1:1", "doc1", 1, "theft excess", []float32{0, 1}),
	})
	require.NoError(t, err)

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc1:0", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "doc1:1", hits[1].ChunkID)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-9)
}

func TestMemoryIndex_UpsertReplacesSameID(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "old text", []float32{1, 0}),
	}))
	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "new text", []float32{1, 0}),
	}))

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new text", hits[0].Text)
}

func TestMemoryIndex_ReplaceDocumentSupersedes(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, index.ReplaceDocument(ctx, "doc1", []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "v1 chunk a", []float32{1, 0}),
		testChunk("doc1:1", "doc1", 1, "v1 chunk b", []float32{1, 0}),
		testChunk("doc1:2", "doc1", 2, "v1 chunk c", []float32{1, 0}),
	}))
	require.NoError(t, index.ReplaceDocument(ctx, "doc1", []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "v2 chunk a", []float32{1, 0}),
	}))

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "v2 chunk a", hits[0].Text)
}

func TestMemoryIndex_ReplaceDocumentWithNilClears(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, index.ReplaceDocument(ctx, "doc1", []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "text", []float32{1, 0}),
	}))
	require.NoError(t, index.ReplaceDocument(ctx, "doc1", nil))

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_ReplaceDocumentRejectsForeignChunks(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())

	err := index.ReplaceDocument(context.Background(), "doc1", []models.Chunk{
		testChunk("doc2:0", "doc2", 0, "text", []float32{1, 0}),
	})
	var integrityErr *errs.IndexIntegrityError
	assert.True(t, errors.As(err, &integrityErr))
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()
	var integrityErr *errs.IndexIntegrityError

	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "text", []float32{1, 0, 0}),
	}))

	err := index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:1", "doc1", 1, "text", []float32{1, 0}),
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &integrityErr))

	_, err = index.Query(ctx, []float32{1, 0}, 10, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &integrityErr))

	err = index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:2", "doc1", 2, "text", nil),
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &integrityErr))
}

func TestMemoryIndex_RejectedBatchLeavesNoDimension(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	// A batch that fails validation on a later chunk stores nothing and must
	// not pin the index dimension from its earlier chunks.
	err := index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "a", []float32{1, 0, 0}),
		testChunk("doc1:1", "doc1", 1, "b", []float32{1, 0}),
	})
	require.Error(t, err)

	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("doc2:0", "doc2", 0, "c", []float32{1, 0}),
	}))

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc2:0", hits[0].ChunkID)
}

func TestMemoryIndex_QueryTieBreaks(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	// All chunks score identically: order must fall back to sequence index,
	// then lexicographic chunk ID.
	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("docB:0", "docB", 0, "b", []float32{1, 0}),
		testChunk("docA:1", "docA", 1, "a1", []float32{1, 0}),
		testChunk("docA:0", "docA", 0, "a0", []float32{1, 0}),
	}))

	hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "docA:0", hits[0].ChunkID)
	assert.Equal(t, "docB:0", hits[1].ChunkID)
	assert.Equal(t, "docA:1", hits[2].ChunkID)
}

func TestMemoryIndex_QueryHonorsKAndFilter(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []models.Chunk{
		testChunk("doc1:0", "doc1", 0, "a", []float32{1, 0}),
		testChunk("doc1:1", "doc1", 1, "b", []float32{1, 0}),
		testChunk("doc2:0", "doc2", 0, "c", []float32{1, 0}),
	}))

	hits, err := index.Query(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = index.Query(ctx, []float32{1, 0}, 10, func(chunk models.Chunk) bool {
		return chunk.DocumentID == "doc2"
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc2:0", hits[0].ChunkID)

	hits, err = index.Query(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_ConcurrentReplaceAndQuery(t *testing.T) {
	index := NewMemoryIndex(zap.NewNop())
	ctx := context.Background()

	fullSet := func(version string) []models.Chunk {
		return []models.Chunk{
			testChunk("doc1:0", "doc1", 0, version, []float32{1, 0}),
			testChunk("doc1:1", "doc1", 1, version, []float32{1, 0}),
		}
	}
	require.NoError(t, index.ReplaceDocument(ctx, "doc1", fullSet("v0")))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = index.ReplaceDocument(ctx, "doc1", fullSet("v"))
			}
		}()
	}

	// Readers must always observe a complete snapshot: both chunks from the
	// same version, never a mix.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hits, err := index.Query(ctx, []float32{1, 0}, 10, nil)
				if !assert.NoError(t, err) || !assert.Len(t, hits, 2) {
					return
				}
				assert.Equal(t, hits[0].Text, hits[1].Text)
			}
		}()
	}

	wg.Wait()
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
