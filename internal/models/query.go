package models

import (
	"time"

	"github.com/google/uuid"
)

// Query is a single question submitted against the corpus. RedactedText is
// what actually crosses the boundary into the external services.
type Query struct {
	ID           uuid.UUID `db:"id"`
	RawText      string    `db:"raw_text"`
	RedactedText string    `db:"redacted_text"`
	Embedding    []float32 `db:"embedding"`
	SubmittedAt  time.Time `db:"submitted_at"`
}

// RetrievedChunk is one ranked retrieval candidate. Scores are normalized
// to [0,1]. Transient: only the audit record persists retrieval results.
type RetrievedChunk struct {
	ChunkID         string
	DocumentID      string
	SequenceIndex   int
	Span            CharSpan
	Text            string
	SimilarityScore float64
	Rank            int
}

// Citation ties a claim in a generated answer to a retrieved chunk. Every
// citation must reference a chunk that was passed to the generation call.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	QuotedSpan string `json:"quoted_span"`
}

// Answer is the generated response. Citations are ordered and non-empty
// unless the answer is a refusal (Grounded false).
type Answer struct {
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations"`
	Grounded    bool       `json:"grounded"`
	GeneratedAt time.Time  `json:"generated_at"`
}
