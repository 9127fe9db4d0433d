package handlers

import (
	"context"
	"errors"
	"strings"

	"guardian-rag/internal/dto"
	"guardian-rag/internal/errs"
	"guardian-rag/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type QueryHandler struct {
	queryService *service.QueryService
	logger       *zap.Logger
}

func NewQueryHandler(queryService *service.QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// Query godoc
// @Summary Answer a question over the policy corpus
// @Description Retrieve relevant passages, redact PII, generate a grounded answer and write the audit record
// @Tags query
// @Accept json
// @Produce json
// @Param request body dto.QueryRequest true "Question with optional retrieval overrides"
// @Security Bearer
// @Success 200 {object} dto.QueryResponse
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/query [post]
func (h *QueryHandler) Query(c *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}
	if req.ScoreThreshold != nil && (*req.ScoreThreshold < 0 || *req.ScoreThreshold > 1) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "score_threshold must be within [0,1]",
		})
	}

	result, err := h.queryService.Query(c.Context(), req.Question, service.QueryOptions{
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing to deliver.
			return nil
		}
		h.logger.Error("Failed to answer query", zap.Error(err))
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to answer query",
		})
	}

	return c.JSON(dto.QueryResponse{
		QueryID: result.QueryID.String(),
		Answer:  result.Answer,
	})
}

// statusForError maps the error taxonomy to HTTP statuses: external
// service failures are bad-gateway, everything else is internal.
func statusForError(err error) int {
	var embErr *errs.EmbeddingServiceError
	var genErr *errs.GenerationServiceError
	if errors.As(err, &embErr) || errors.As(err, &genErr) {
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
