package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"guardian-rag/internal/api/handlers"
	"guardian-rag/internal/audit"
	"guardian-rag/internal/chunker"
	"guardian-rag/internal/generator"
	"guardian-rag/internal/models"
	"guardian-rag/internal/redactor"
	"guardian-rag/internal/retriever"
	"guardian-rag/internal/service"
	"guardian-rag/internal/vectorindex"
	"guardian-rag/pkg/auth"
	"guardian-rag/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns the same unit vector for every text, so anything
// ingested is retrievable by any query.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// stubGenerator cites the first retrieved chunk verbatim.
type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, redactedQuery string, retrieved []models.RetrievedChunk) (*models.Answer, error) {
	if len(retrieved) == 0 {
		return &models.Answer{Text: generator.RefusalText, Grounded: false, GeneratedAt: time.Now().UTC()}, nil
	}
	return &models.Answer{
		Text:        "The windscreen excess is seventy five pounds.",
		Citations:   []models.Citation{{ChunkID: retrieved[0].ChunkID, QuotedSpan: "seventy five pounds"}},
		Grounded:    true,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func newTestApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	nop := zap.NewNop()

	index := vectorindex.NewMemoryIndex(nop)
	auditLog := audit.NewMemoryLogger()

	chk, err := chunker.New(config.ChunkingConfig{MaxTokens: 64, OverlapTokens: 8})
	require.NoError(t, err)

	retrievalCfg := config.RetrievalConfig{TopK: 5, OversampleFactor: 3, ScoreThreshold: 0.7}
	ret := retriever.New(index, retrievalCfg, nop)
	red := redactor.New(nop)

	ingestService := service.NewIngestService(chk, chunker.DefaultCleanConfig(), stubEmbedder{}, index, nop)
	queryService := service.NewQueryService(stubEmbedder{}, ret, red, stubGenerator{}, auditLog, retrievalCfg, nop)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.GenerateToken("test-suite")
	require.NoError(t, err)

	app := SetupRouter(
		handlers.NewIngestHandler(ingestService, nop),
		handlers.NewQueryHandler(queryService, nop),
		handlers.NewAuditHandler(auditLog, nop),
		jwtManager,
		nop,
	)
	return app, token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestPublicEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/query", "", map[string]any{"question": "excess?"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/query", "garbage-token", map[string]any{"question": "excess?"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIngestQueryAuditFlow(t *testing.T) {
	app, token := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/documents/ingest", token, map[string]any{
		"id":         "motor-policy",
		"source_uri": "file://motor-policy.txt",
		"raw_text":   "The windscreen excess is seventy five pounds. Theft claims carry an excess of two hundred pounds.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "motor-policy", body["document_id"])
	assert.GreaterOrEqual(t, body["chunk_count"].(float64), float64(1))

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/query", token, map[string]any{
		"question": "What is the windscreen excess?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queryID, ok := body["query_id"].(string)
	require.True(t, ok)
	answer := body["answer"].(map[string]any)
	assert.Equal(t, true, answer["grounded"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/v1/audit/"+queryID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, queryID, body["query_id"])
	assert.Equal(t, true, body["grounded"])
	assert.Equal(t, "What is the windscreen excess?", body["query_text_redacted"])
}

func TestQueryValidation(t *testing.T) {
	app, token := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/query", token, map[string]any{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/query", token, map[string]any{
		"question":        "excess?",
		"score_threshold": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestValidation(t *testing.T) {
	app, token := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/documents/ingest", token, map[string]any{
		"id": "", "raw_text": "text",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/documents/ingest", token, map[string]any{
		"id": "doc", "raw_text": "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuditLookupErrors(t *testing.T) {
	app, token := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/audit/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/audit/00000000-0000-0000-0000-000000000001", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
