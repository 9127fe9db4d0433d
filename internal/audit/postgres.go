package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresLogger persists audit records to an insert-only table. There is
// deliberately no UPDATE or DELETE path in this type.
type PostgresLogger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresLogger(db *pgxpool.Pool, logger *zap.Logger) *PostgresLogger {
	return &PostgresLogger{
		db:     db,
		logger: logger,
	}
}

func (l *PostgresLogger) Record(ctx context.Context, record *models.AuditRecord) error {
	piiJSON, err := json.Marshal(record.PIIEntitiesFound)
	if err != nil {
		return &errs.AuditWriteError{Err: fmt.Errorf("failed to marshal pii entities: %w", err)}
	}
	citationsJSON, err := json.Marshal(record.Citations)
	if err != nil {
		return &errs.AuditWriteError{Err: fmt.Errorf("failed to marshal citations: %w", err)}
	}

	query := squirrel.Insert("audit_records").
		Columns("query_id", "query_text_redacted", "retrieved_chunk_ids", "pii_entities_found",
			"answer_text", "grounded", "citations", "latency_ms", "created_at").
		Values(record.QueryID, record.QueryTextRedacted, record.RetrievedChunkIDs, string(piiJSON),
			record.AnswerText, record.Grounded, string(citationsJSON), record.LatencyMs, record.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return &errs.AuditWriteError{Err: err}
	}

	if _, err := l.db.Exec(ctx, sql, args...); err != nil {
		l.logger.Error("Audit record write failed",
			zap.String("query_id", record.QueryID.String()),
			zap.Error(err),
		)
		return &errs.AuditWriteError{Err: err}
	}

	return nil
}

func (l *PostgresLogger) GetByQueryID(ctx context.Context, queryID uuid.UUID) (*models.AuditRecord, error) {
	query := squirrel.Select("query_id", "query_text_redacted", "retrieved_chunk_ids", "pii_entities_found",
		"answer_text", "grounded", "citations", "latency_ms", "created_at").
		From("audit_records").
		Where(squirrel.Eq{"query_id": queryID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var record models.AuditRecord
	var piiJSON, citationsJSON string
	err = l.db.QueryRow(ctx, sql, args...).Scan(
		&record.QueryID, &record.QueryTextRedacted, &record.RetrievedChunkIDs, &piiJSON,
		&record.AnswerText, &record.Grounded, &citationsJSON, &record.LatencyMs, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrAuditRecordNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(piiJSON), &record.PIIEntitiesFound); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pii entities: %w", err)
	}
	if err := json.Unmarshal([]byte(citationsJSON), &record.Citations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
	}

	return &record, nil
}
