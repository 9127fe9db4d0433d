package dto

import "guardian-rag/internal/models"

type QueryRequest struct {
	Question string `json:"question" validate:"required"`
	// Optional overrides; zero/absent values fall back to configured
	// defaults.
	TopK           int      `json:"top_k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

type QueryResponse struct {
	QueryID string        `json:"query_id"`
	Answer  models.Answer `json:"answer"`
}

type AuditRecordResponse struct {
	QueryID           string             `json:"query_id"`
	QueryTextRedacted string             `json:"query_text_redacted"`
	RetrievedChunkIDs []string           `json:"retrieved_chunk_ids"`
	PIIEntitiesFound  []models.PIIEntity `json:"pii_entities_found"`
	AnswerText        string             `json:"answer_text"`
	Grounded          bool               `json:"grounded"`
	Citations         []models.Citation  `json:"citations"`
	LatencyMs         int64              `json:"latency_ms"`
	CreatedAt         string             `json:"created_at"`
}
