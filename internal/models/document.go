package models

import (
	"time"
)

// Document is a cleaned policy document submitted for ingestion. Documents
// are immutable once ingested; re-ingestion under the same ID creates a new
// version and supersedes the prior chunk set.
type Document struct {
	ID         string    `db:"id"`
	SourceURI  string    `db:"source_uri"`
	RawText    string    `db:"raw_text"`
	Version    int       `db:"version"`
	IngestedAt time.Time `db:"ingested_at"`
}

// Chunk is a bounded passage of a document, the unit of embedding and
// retrieval. Span addresses the original document text; raw windows may
// overlap by design while SequenceIndex stays monotonic per document.
type Chunk struct {
	ID            string    `db:"id"`
	DocumentID    string    `db:"document_id"`
	SequenceIndex int       `db:"sequence_index"`
	Text          string    `db:"text"`
	Span          CharSpan  `db:"span"`
	Embedding     []float32 `db:"embedding"`
}

// CharSpan is a half-open [Start, End) byte range into the document text.
type CharSpan struct {
	Start int `db:"span_start"`
	End   int `db:"span_end"`
}

// Overlap returns the number of positions shared by two spans.
func (s CharSpan) Overlap(other CharSpan) int {
	start := s.Start
	if other.Start > start {
		start = other.Start
	}
	end := s.End
	if other.End < end {
		end = other.End
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Len returns the span length.
func (s CharSpan) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}
