package service

import (
	"context"
	"fmt"
	"time"

	"guardian-rag/internal/chunker"
	"guardian-rag/internal/models"
	"guardian-rag/internal/tokencost"
	"guardian-rag/internal/vectorindex"

	"go.uber.org/zap"
)

// Embedder is the embedding client contract the services depend on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService runs the ingestion path: clean text, chunk, embed, and
// atomically publish the document's chunk set to the vector index.
// Re-ingestion under the same document ID supersedes the prior chunk set.
type IngestService struct {
	chunker  *chunker.Chunker
	cleanCfg chunker.CleanConfig
	embedder Embedder
	index    vectorindex.Index
	logger   *zap.Logger
}

func NewIngestService(
	chk *chunker.Chunker,
	cleanCfg chunker.CleanConfig,
	embedder Embedder,
	index vectorindex.Index,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		chunker:  chk,
		cleanCfg: cleanCfg,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Ingest processes one document and returns the number of chunks produced.
// Ingesting identical content under the same ID is idempotent: the index's
// chunk set for the document is unchanged in content.
func (s *IngestService) Ingest(ctx context.Context, doc models.Document) (int, error) {
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	doc.RawText = chunker.CleanText(doc.RawText, s.cleanCfg)

	chunks := s.chunker.Chunk(doc)
	if len(chunks) == 0 {
		// An empty document still supersedes any prior version.
		if err := s.index.ReplaceDocument(ctx, doc.ID, nil); err != nil {
			return 0, fmt.Errorf("failed to clear document chunks: %w", err)
		}
		s.logger.Warn("Document produced no chunks", zap.String("document_id", doc.ID))
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed document chunks: %w", err)
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := s.index.ReplaceDocument(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("failed to index document chunks: %w", err)
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("source_uri", doc.SourceURI),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", tokencost.CountTokens(doc.RawText)),
	)

	return len(chunks), nil
}
