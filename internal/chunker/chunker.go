package chunker

import (
	"strconv"
	"strings"
	"unicode"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"
	"guardian-rag/pkg/config"
)

// Chunker splits cleaned document text into overlapping token windows.
// Chunking is deterministic for a fixed configuration: the same document
// always produces the same chunk boundaries.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

func New(cfg config.ChunkingConfig) (*Chunker, error) {
	if cfg.MaxTokens <= 0 {
		return nil, errs.NewConfigError("CHUNK_MAX_TOKENS", "must be positive")
	}
	if cfg.OverlapTokens < 0 {
		return nil, errs.NewConfigError("CHUNK_OVERLAP_TOKENS", "must not be negative")
	}
	if cfg.OverlapTokens >= cfg.MaxTokens {
		return nil, errs.NewConfigError("CHUNK_OVERLAP_TOKENS", "must be less than CHUNK_MAX_TOKENS")
	}
	return &Chunker{
		maxTokens:     cfg.MaxTokens,
		overlapTokens: cfg.OverlapTokens,
	}, nil
}

// token is a whitespace-delimited word with its byte span in the text.
type token struct {
	start int
	end   int
}

// Chunk splits the document into windows of at most maxTokens tokens,
// stepping forward by maxTokens-overlapTokens. Sentence and paragraph
// boundaries within a window are preferred split points; a hard token
// cutoff is the fallback. Spans address doc.RawText. Produces no side
// effects beyond the returned chunks.
func (c *Chunker) Chunk(doc models.Document) []models.Chunk {
	text := doc.RawText
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []models.Chunk
	i := 0
	for {
		end := i + c.maxTokens
		if end >= len(tokens) {
			end = len(tokens)
		} else if b := lastBoundary(text, tokens, i, end, c.overlapTokens); b > 0 {
			end = b
		}

		span := models.CharSpan{Start: tokens[i].start, End: tokens[end-1].end}
		seq := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:            doc.ID + ":" + strconv.Itoa(seq),
			DocumentID:    doc.ID,
			SequenceIndex: seq,
			Text:          text[span.Start:span.End],
			Span:          span,
		})

		if end == len(tokens) {
			break
		}
		i = end - c.overlapTokens
	}

	return chunks
}

// lastBoundary searches backwards within the window for the last token that
// ends a sentence or precedes a paragraph break. Returns the exclusive end
// index of the adjusted window, or 0 if no usable boundary exists. A
// boundary is usable only if it leaves the window longer than the overlap,
// so every step still moves forward.
func lastBoundary(text string, tokens []token, start, end, overlap int) int {
	for j := end - 1; j > start; j-- {
		if j+1-start <= overlap {
			break
		}
		if endsSentence(text, tokens, j) {
			return j + 1
		}
	}
	return 0
}

func endsSentence(text string, tokens []token, j int) bool {
	word := text[tokens[j].start:tokens[j].end]
	trimmed := strings.TrimRight(word, `"')]`)
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		return true
	}
	// Paragraph break after this token counts as a boundary too.
	if j+1 < len(tokens) {
		gap := text[tokens[j].end:tokens[j+1].start]
		if strings.Count(gap, "\n") >= 2 {
			return true
		}
	}
	return false
}

func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}
