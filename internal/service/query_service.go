package service

import (
	"context"
	"fmt"
	"time"

	"guardian-rag/internal/audit"
	"guardian-rag/internal/models"
	"guardian-rag/internal/redactor"
	"guardian-rag/internal/retriever"
	"guardian-rag/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator is the grounded generation contract the query path depends on.
type Generator interface {
	Generate(ctx context.Context, redactedQuery string, retrieved []models.RetrievedChunk) (*models.Answer, error)
}

// QueryOptions carries per-request overrides. Zero TopK and nil
// ScoreThreshold fall back to the configured defaults.
type QueryOptions struct {
	TopK           int
	ScoreThreshold *float64
}

// QueryResult pairs the answer with the identifier under which its audit
// record is retrievable.
type QueryResult struct {
	QueryID uuid.UUID
	Answer  models.Answer
}

// QueryService runs the query path: redact, embed, retrieve, redact
// retrieved context, generate, audit. An answer is only ever returned
// after its audit record is durably written.
type QueryService struct {
	embedder  Embedder
	retriever *retriever.Retriever
	redactor  *redactor.Redactor
	generator Generator
	auditLog  audit.Logger
	defaults  config.RetrievalConfig
	logger    *zap.Logger
}

func NewQueryService(
	embedder Embedder,
	ret *retriever.Retriever,
	red *redactor.Redactor,
	generator Generator,
	auditLog audit.Logger,
	defaults config.RetrievalConfig,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		embedder:  embedder,
		retriever: ret,
		redactor:  red,
		generator: generator,
		auditLog:  auditLog,
		defaults:  defaults,
		logger:    logger,
	}
}

// Query answers a natural-language question over the indexed corpus.
//
// The incoming question is redacted before anything leaves the process:
// only the redacted text is embedded, sent to generation, and audited.
// Retrieved chunk text is likewise redacted before generation.
//
// If ctx is cancelled, in-flight external calls run to completion but the
// results are discarded: no audit record is written and no answer is
// returned. A failed audit write also withholds the answer.
func (s *QueryService) Query(ctx context.Context, rawText string, opts QueryOptions) (*QueryResult, error) {
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaults.TopK
	}
	threshold := s.defaults.ScoreThreshold
	if opts.ScoreThreshold != nil {
		threshold = *opts.ScoreThreshold
	}

	query := models.Query{
		ID:          uuid.New(),
		RawText:     rawText,
		SubmittedAt: start.UTC(),
	}

	redactedQuery, queryEntities := s.redactor.Redact(rawText)
	query.RedactedText = redactedQuery

	vectors, err := s.embedder.Embed(ctx, []string{redactedQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	query.Embedding = vectors[0]

	retrieved, err := s.retriever.Search(ctx, query.Embedding, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	// Redact every retrieved chunk before it crosses the boundary into the
	// external generation service.
	entities := queryEntities
	chunkIDs := make([]string, len(retrieved))
	for i := range retrieved {
		redactedText, chunkEntities := s.redactor.Redact(retrieved[i].Text)
		retrieved[i].Text = redactedText
		entities = append(entities, chunkEntities...)
		chunkIDs[i] = retrieved[i].ChunkID
	}

	answer, err := s.generator.Generate(ctx, redactedQuery, retrieved)
	if err != nil {
		return nil, err
	}

	// A cancelled request must produce neither an answer nor an audit
	// record, even if the external calls completed.
	if err := ctx.Err(); err != nil {
		s.logger.Info("Query cancelled, discarding answer",
			zap.String("query_id", query.ID.String()),
		)
		return nil, err
	}

	record := &models.AuditRecord{
		QueryID:           query.ID,
		QueryTextRedacted: redactedQuery,
		RetrievedChunkIDs: chunkIDs,
		PIIEntitiesFound:  entities,
		AnswerText:        answer.Text,
		Grounded:          answer.Grounded,
		Citations:         answer.Citations,
		LatencyMs:         time.Since(start).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.auditLog.Record(ctx, record); err != nil {
		// Compliance over availability: an un-audited answer is never
		// delivered.
		return nil, err
	}

	s.logger.Info("Query answered",
		zap.String("query_id", query.ID.String()),
		zap.Int("retrieved", len(retrieved)),
		zap.Bool("grounded", answer.Grounded),
		zap.Int64("latency_ms", record.LatencyMs),
	)

	return &QueryResult{
		QueryID: query.ID,
		Answer:  *answer,
	}, nil
}
