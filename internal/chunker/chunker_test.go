package chunker

import (
	"errors"
	"strings"
	"testing"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"
	"guardian-rag/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunker(t *testing.T, maxTokens, overlapTokens int) *Chunker {
	t.Helper()
	c, err := New(config.ChunkingConfig{MaxTokens: maxTokens, OverlapTokens: overlapTokens})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	var cfgErr *errs.ConfigError

	_, err := New(config.ChunkingConfig{MaxTokens: 0, OverlapTokens: 0})
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(config.ChunkingConfig{MaxTokens: 50, OverlapTokens: 50})
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(config.ChunkingConfig{MaxTokens: 50, OverlapTokens: 60})
	require.Error(t, err)

	_, err = New(config.ChunkingConfig{MaxTokens: 50, OverlapTokens: -1})
	require.Error(t, err)
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := newChunker(t, 50, 10)
	chunks := c.Chunk(models.Document{ID: "doc-1", RawText: "   \n  "})
	assert.Empty(t, chunks)
}

func TestChunk_SingleWindow(t *testing.T) {
	c := newChunker(t, 50, 10)
	chunks := c.Chunk(models.Document{ID: "doc-1", RawText: "Windscreen cover includes repair or replacement."})
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1:0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, "Windscreen cover includes repair or replacement.", chunks[0].Text)
}

func TestChunk_HardCutoffWindows(t *testing.T) {
	// No sentence boundaries: twelve words, windows of five, overlap two.
	text := "one two three four five six seven eight nine ten eleven twelve"
	c := newChunker(t, 5, 2)
	chunks := c.Chunk(models.Document{ID: "doc-1", RawText: text})

	require.Len(t, chunks, 4)
	assert.Equal(t, "one two three four five", chunks[0].Text)
	assert.Equal(t, "four five six seven eight", chunks[1].Text)
	assert.Equal(t, "seven eight nine ten eleven", chunks[2].Text)
	assert.Equal(t, "ten eleven twelve", chunks[3].Text)
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second part follows now and then continues"
	c := newChunker(t, 6, 1)
	chunks := c.Chunk(models.Document{ID: "doc-1", RawText: text})

	require.NotEmpty(t, chunks)
	assert.Equal(t, "First sentence here.", chunks[0].Text)
}

func TestChunk_MonotonicSequenceAndSpans(t *testing.T) {
	paragraphs := []string{
		"Your policy covers accidental damage to your vehicle. The excess for accidental damage claims is one hundred pounds. Claims must be reported within thirty days of the incident occurring.",
		"Windscreen damage is covered separately under section four. The excess for windscreen replacement is seventy five pounds. Repairs to chips are free of charge when booked through an approved repairer.",
		"Theft of the vehicle is covered provided all keys are accounted for. The excess for theft claims is two hundred and fifty pounds. A crime reference number is required for all theft claims.",
	}
	doc := models.Document{ID: "policy-1", RawText: strings.Join(paragraphs, "\n\n")}
	c := newChunker(t, 50, 10)

	chunks := c.Chunk(doc)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, "policy-1", chunk.DocumentID)
		require.True(t, chunk.Span.Start >= 0 && chunk.Span.End <= len(doc.RawText))
		assert.Equal(t, doc.RawText[chunk.Span.Start:chunk.Span.End], chunk.Text)
		if i > 0 {
			// Consecutive raw windows overlap by design.
			assert.Less(t, chunks[i].Span.Start, chunks[i-1].Span.End)
			assert.Greater(t, chunks[i].Span.Start, chunks[i-1].Span.Start)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	doc := models.Document{
		ID:      "policy-1",
		RawText: strings.Repeat("The excess for windscreen damage is seventy five pounds. ", 40),
	}
	c := newChunker(t, 30, 5)

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Span, second[i].Span)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}
