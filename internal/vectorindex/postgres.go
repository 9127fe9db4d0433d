package vectorindex

import (
	"context"
	"fmt"

	"guardian-rag/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresIndex stores chunk embeddings in a pgvector-enabled table.
// Document replacement runs as delete-then-insert inside one transaction,
// which gives concurrent queries the old-or-new snapshot guarantee.
type PostgresIndex struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresIndex(db *pgxpool.Pool, logger *zap.Logger) *PostgresIndex {
	return &PostgresIndex{
		db:     db,
		logger: logger,
	}
}

func (x *PostgresIndex) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, x.db, func(tx pgx.Tx) error {
		for _, chunk := range chunks {
			if err := upsertChunk(ctx, tx, chunk); err != nil {
				return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
}

func (x *PostgresIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk) error {
	err := pgx.BeginFunc(ctx, x.db, func(tx pgx.Tx) error {
		deleteQuery := squirrel.Delete("chunks").
			Where(squirrel.Eq{"document_id": documentID}).
			PlaceholderFormat(squirrel.Dollar)

		sql, args, err := deleteQuery.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}

		for _, chunk := range chunks {
			if err := upsertChunk(ctx, tx, chunk); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.logger.Debug("Document chunk set replaced",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func upsertChunk(ctx context.Context, tx pgx.Tx, chunk models.Chunk) error {
	embeddingArray := pgtype.FlatArray[float32]{}
	for _, v := range chunk.Embedding {
		embeddingArray = append(embeddingArray, v)
	}

	query := squirrel.Insert("chunks").
		Columns("id", "document_id", "sequence_index", "text", "span_start", "span_end", "embedding").
		Values(chunk.ID, chunk.DocumentID, chunk.SequenceIndex, chunk.Text, chunk.Span.Start, chunk.Span.End, embeddingArray).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"document_id = EXCLUDED.document_id, " +
			"sequence_index = EXCLUDED.sequence_index, " +
			"text = EXCLUDED.text, " +
			"span_start = EXCLUDED.span_start, " +
			"span_end = EXCLUDED.span_end, " +
			"embedding = EXCLUDED.embedding").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, sql, args...)
	return err
}

func (x *PostgresIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	embeddingArray := pgtype.FlatArray[float32]{}
	for _, v := range vector {
		embeddingArray = append(embeddingArray, v)
	}

	// A Go-side predicate cannot be pushed into SQL, so oversample and
	// filter the fetched rows before truncating.
	limit := k
	if filter != nil {
		limit = k * 4
	}

	query := squirrel.Select("id", "document_id", "sequence_index", "text", "span_start", "span_end").
		Column(squirrel.Expr("1 - (embedding <=> ?::vector) AS similarity", embeddingArray)).
		From("chunks").
		OrderBy("similarity DESC", "sequence_index ASC", "id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := x.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(
			&hit.ChunkID, &hit.DocumentID, &hit.SequenceIndex, &hit.Text,
			&hit.Span.Start, &hit.Span.End, &hit.Score,
		); err != nil {
			return nil, err
		}
		if filter != nil && !filter(models.Chunk{
			ID:            hit.ChunkID,
			DocumentID:    hit.DocumentID,
			SequenceIndex: hit.SequenceIndex,
			Text:          hit.Text,
			Span:          hit.Span,
		}) {
			continue
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
