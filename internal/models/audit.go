package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is the immutable compliance record for one answered query.
// Append-only: once written it is never mutated or deleted.
type AuditRecord struct {
	QueryID           uuid.UUID   `db:"query_id"`
	QueryTextRedacted string      `db:"query_text_redacted"`
	RetrievedChunkIDs []string    `db:"retrieved_chunk_ids"`
	PIIEntitiesFound  []PIIEntity `db:"pii_entities_found"`
	AnswerText        string      `db:"answer_text"`
	Grounded          bool        `db:"grounded"`
	Citations         []Citation  `db:"citations"`
	LatencyMs         int64       `db:"latency_ms"`
	CreatedAt         time.Time   `db:"created_at"`
}
