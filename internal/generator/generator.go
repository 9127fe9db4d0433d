package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"
	"guardian-rag/internal/tokencost"
	"guardian-rag/pkg/config"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// RefusalText is the fixed answer used whenever the system cannot ground a
// response in retrieved context. It is the only ungrounded text the system
// ever produces.
const RefusalText = "I do not have sufficient information in the provided policy documents to answer this question."

// chatAPI is the slice of the OpenAI client the generator depends on.
// Tests inject a fake implementation.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator builds generation requests constrained to retrieved, redacted
// context and validates that output citations reference only supplied
// chunks. An answer whose citations cannot all be validated is never
// surfaced as grounded.
type Generator struct {
	api         chatAPI
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

func New(cfg *config.OpenAIConfig, logger *zap.Logger) *Generator {
	return newGenerator(openai.NewClient(cfg.APIKey), cfg, logger)
}

func newGenerator(api chatAPI, cfg *config.OpenAIConfig, logger *zap.Logger) *Generator {
	temperature := cfg.Temperature
	if temperature == 0 {
		// The client library omits a zero temperature from the request
		// (omitempty), which silently falls back to the provider default.
		// The smallest non-zero float survives serialization and behaves
		// identically to zero.
		temperature = math.SmallestNonzeroFloat32
	}
	return &Generator{
		api:         api,
		model:       cfg.GenerationModel,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.RequestTimeout,
		logger:      logger,
	}
}

const systemInstruction = `You are an assistant answering questions about UK insurance policy documents.

RULES:
- Answer ONLY from the numbered context passages provided in the user message. Never use outside knowledge.
- Every factual claim must carry a citation referencing the chunk_id of the passage it came from, with a short verbatim quote from that passage.
- If the context does not contain the answer, say so instead of guessing.
- Return ONLY a valid JSON object, no markdown fences, no commentary, in this exact format:
{
  "answer": "the answer text",
  "citations": [
    {"chunk_id": "the id of a supplied passage", "quoted_span": "verbatim quote from that passage"}
  ]
}`

// rawResponse is the generation service's wire contract.
type rawResponse struct {
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations"`
}

// Generate produces an Answer for the redacted query, grounded in the
// supplied chunks. With no chunks it returns the refusal answer without
// calling the external service at all.
func (g *Generator) Generate(ctx context.Context, redactedQuery string, retrieved []models.RetrievedChunk) (*models.Answer, error) {
	if len(retrieved) == 0 {
		return refusalAnswer(), nil
	}

	prompt := buildPrompt(redactedQuery, retrieved)
	if estimate, err := tokencost.EstimateCost(prompt, g.model); err == nil {
		g.logger.Debug("Generation request prepared",
			zap.Int("prompt_tokens", estimate.Tokens),
			zap.Float64("estimated_input_cost", estimate.InputCost),
		)
	}

	raw, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	answer := g.validate(raw, retrieved)
	return answer, nil
}

// callWithRetry calls the generation service, retrying once on transient
// failure. On repeated failure the error is fatal for this query.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (*rawResponse, error) {
	raw, err := g.callOnce(ctx, prompt)
	if err == nil {
		return raw, nil
	}
	if !errs.IsTransient(err) {
		return nil, err
	}

	g.logger.Warn("Generation request failed, retrying once", zap.Error(err))
	return g.callOnce(ctx, prompt)
}

func (g *Generator) callOnce(ctx context.Context, prompt string) (*rawResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, &errs.GenerationServiceError{Transient: isTransientAPIError(err), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &errs.GenerationServiceError{
			Transient: false,
			Err:       errors.New("no choices in generation response"),
		}
	}

	return parseResponse(resp.Choices[0].Message.Content), nil
}

// parseResponse extracts the JSON object from the model output, tolerating
// markdown fences and surrounding commentary. An unparseable response is a
// validation failure, represented as an empty rawResponse so downstream
// validation produces the refusal answer.
func parseResponse(content string) *rawResponse {
	content = strings.TrimSpace(content)

	jsonStart := strings.Index(content, "{")
	jsonEnd := strings.LastIndex(content, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd < jsonStart {
		return &rawResponse{}
	}

	jsonStr := content[jsonStart : jsonEnd+1]

	var raw rawResponse
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		jsonStr = strings.TrimSpace(jsonStr)
		jsonStr = strings.TrimPrefix(jsonStr, "```json")
		jsonStr = strings.TrimPrefix(jsonStr, "```")
		jsonStr = strings.TrimSuffix(jsonStr, "```")
		jsonStr = strings.TrimSpace(jsonStr)

		if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
			return &rawResponse{}
		}
	}

	return &raw
}

// validate drops every citation that does not reference a supplied chunk
// with a verbatim (case-insensitive, whitespace-normalized) quote. If no
// citation survives, the answer is replaced by the refusal: an
// ungroundable claim is never surfaced as supported.
func (g *Generator) validate(raw *rawResponse, retrieved []models.RetrievedChunk) *models.Answer {
	chunkText := make(map[string]string, len(retrieved))
	for _, chunk := range retrieved {
		chunkText[chunk.ChunkID] = normalizeForMatch(chunk.Text)
	}

	var valid []models.Citation
	for _, citation := range raw.Citations {
		text, ok := chunkText[citation.ChunkID]
		if !ok {
			g.logger.Warn("Citation references unknown chunk, dropping",
				zap.String("chunk_id", citation.ChunkID),
			)
			continue
		}
		quote := normalizeForMatch(citation.QuotedSpan)
		if quote == "" || !strings.Contains(text, quote) {
			g.logger.Warn("Citation quote not found in chunk, dropping",
				zap.String("chunk_id", citation.ChunkID),
			)
			continue
		}
		valid = append(valid, citation)
	}

	if strings.TrimSpace(raw.Answer) == "" || len(valid) == 0 {
		return refusalAnswer()
	}

	return &models.Answer{
		Text:        raw.Answer,
		Citations:   valid,
		Grounded:    true,
		GeneratedAt: time.Now().UTC(),
	}
}

func buildPrompt(redactedQuery string, retrieved []models.RetrievedChunk) string {
	var builder strings.Builder
	builder.WriteString("Context passages:\n\n")
	for i, chunk := range retrieved {
		builder.WriteString(fmt.Sprintf("%d. chunk_id: %s\n", i+1, chunk.ChunkID))
		builder.WriteString(chunk.Text)
		builder.WriteString("\n\n")
	}
	builder.WriteString("Question: ")
	builder.WriteString(redactedQuery)
	return builder.String()
}

func refusalAnswer() *models.Answer {
	return &models.Answer{
		Text:        RefusalText,
		Citations:   nil,
		Grounded:    false,
		GeneratedAt: time.Now().UTC(),
	}
}

// normalizeForMatch lowercases and collapses whitespace so quotes match
// across line breaks and case differences.
func normalizeForMatch(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isTransientAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return true
}
