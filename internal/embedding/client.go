package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"guardian-rag/internal/errs"
	"guardian-rag/pkg/config"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// embeddingAPI is the slice of the OpenAI client the embedding client
// depends on. Tests inject a fake implementation.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Client wraps the external embedding service: batching, bounded retry with
// exponential backoff, and order/count integrity checks. Pure adapter, no
// retrieval logic.
type Client struct {
	api         embeddingAPI
	model       string
	batchSize   int
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger
}

func NewClient(cfg *config.OpenAIConfig, embCfg config.EmbeddingConfig, logger *zap.Logger) *Client {
	return newClient(openai.NewClient(cfg.APIKey), cfg, embCfg, logger)
}

func newClient(api embeddingAPI, cfg *config.OpenAIConfig, embCfg config.EmbeddingConfig, logger *zap.Logger) *Client {
	return &Client{
		api:         api,
		model:       cfg.EmbeddingModel,
		batchSize:   embCfg.BatchSize,
		maxAttempts: embCfg.MaxAttempts,
		timeout:     cfg.RequestTimeout,
		logger:      logger,
	}
}

// Embed returns one vector per input text, same length and order. Inputs
// are never silently dropped: any batch that cannot be embedded after the
// bounded retries fails the whole call with EmbeddingServiceError.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &errs.EmbeddingServiceError{Transient: true, Err: ctx.Err()}
			}
			backoff *= 2
		}

		vectors, err := c.callOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !errs.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("Embedding request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
	}

	return nil, lastErr
}

func (c *Client) callOnce(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, &errs.EmbeddingServiceError{Transient: isTransientAPIError(err), Err: err}
	}

	// Mismatched counts mean the response cannot be trusted at all; this is
	// an integrity violation, not a retryable fault.
	if len(resp.Data) != len(texts) {
		return nil, &errs.EmbeddingServiceError{
			Transient: false,
			Err:       fmt.Errorf("requested %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([][]float32, len(texts))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		l2normalize(vec)
		vectors[i] = vec
	}

	return vectors, nil
}

// isTransientAPIError treats rate limits, server errors, timeouts and
// network failures as retryable; other API errors are permanent.
func isTransientAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return true
}

// l2normalize scales the vector to unit length, so cosine similarity
// reduces to a dot product downstream.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
