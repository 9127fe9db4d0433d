package retriever

import (
	"context"
	"fmt"

	"guardian-rag/internal/models"
	"guardian-rag/internal/vectorindex"
	"guardian-rag/pkg/config"

	"go.uber.org/zap"
)

// Retriever turns a query embedding into a ranked, deduplicated set of
// chunks. It only reads the index; it never owns embeddings.
type Retriever struct {
	index            vectorindex.Index
	oversampleFactor int
	logger           *zap.Logger
}

func New(index vectorindex.Index, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		index:            index,
		oversampleFactor: cfg.OversampleFactor,
		logger:           logger,
	}
}

// Search queries the index for topK*oversampleFactor candidates, discards
// those below scoreThreshold, suppresses near-duplicates, and truncates to
// topK. An empty result is a legitimate "no relevant context" outcome, not
// an error; callers must check for it explicitly.
func (r *Retriever) Search(ctx context.Context, queryEmbedding []float32, topK int, scoreThreshold float64) ([]models.RetrievedChunk, error) {
	hits, err := r.index.Query(ctx, queryEmbedding, topK*r.oversampleFactor, nil)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}

	var kept []models.RetrievedChunk
	for _, hit := range hits {
		// Cosine similarity in [-1,1] normalized to [0,1].
		score := (hit.Score + 1) / 2
		if score < scoreThreshold {
			continue
		}

		candidate := models.RetrievedChunk{
			ChunkID:         hit.ChunkID,
			DocumentID:      hit.DocumentID,
			SequenceIndex:   hit.SequenceIndex,
			Span:            hit.Span,
			Text:            hit.Text,
			SimilarityScore: score,
		}

		if isNearDuplicate(candidate, kept) {
			continue
		}

		candidate.Rank = len(kept) + 1
		kept = append(kept, candidate)
		if len(kept) == topK {
			break
		}
	}

	r.logger.Debug("Retrieval completed",
		zap.Int("candidates", len(hits)),
		zap.Int("kept", len(kept)),
		zap.Float64("score_threshold", scoreThreshold),
	)

	return kept, nil
}

// isNearDuplicate reports whether the candidate's span overlaps more than
// 50% with a higher-ranked chunk from the same document.
func isNearDuplicate(candidate models.RetrievedChunk, kept []models.RetrievedChunk) bool {
	length := candidate.Span.Len()
	if length == 0 {
		return false
	}
	for _, existing := range kept {
		if existing.DocumentID != candidate.DocumentID {
			continue
		}
		overlap := candidate.Span.Overlap(existing.Span)
		if float64(overlap)/float64(length) > 0.5 {
			return true
		}
	}
	return false
}
