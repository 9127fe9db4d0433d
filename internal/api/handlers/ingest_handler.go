package handlers

import (
	"strings"

	"guardian-rag/internal/dto"
	"guardian-rag/internal/models"
	"guardian-rag/internal/service"
	"guardian-rag/internal/tokencost"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type IngestHandler struct {
	ingestService *service.IngestService
	logger        *zap.Logger
}

func NewIngestHandler(ingestService *service.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// IngestDocument godoc
// @Summary Ingest a policy document
// @Description Chunk, embed and index a cleaned policy document; re-ingestion under the same id supersedes the prior version
// @Tags documents
// @Accept json
// @Produce json
// @Param request body dto.IngestDocumentRequest true "Document to ingest"
// @Security Bearer
// @Success 201 {object} dto.IngestDocumentResponse
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/documents/ingest [post]
func (h *IngestHandler) IngestDocument(c *fiber.Ctx) error {
	var req dto.IngestDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.ID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document id is required",
		})
	}
	if strings.TrimSpace(req.RawText) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document text is required",
		})
	}

	doc := models.Document{
		ID:        req.ID,
		SourceURI: req.SourceURI,
		RawText:   req.RawText,
	}

	chunkCount, err := h.ingestService.Ingest(c.Context(), doc)
	if err != nil {
		h.logger.Error("Failed to ingest document",
			zap.String("document_id", req.ID),
			zap.Error(err),
		)
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.IngestDocumentResponse{
		DocumentID: req.ID,
		ChunkCount: chunkCount,
		TokenCount: tokencost.CountTokens(req.RawText),
	})
}
