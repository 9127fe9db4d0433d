package handlers

import (
	"errors"
	"time"

	"guardian-rag/internal/audit"
	"guardian-rag/internal/dto"
	"guardian-rag/internal/errs"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditLog audit.Logger
	logger   *zap.Logger
}

func NewAuditHandler(auditLog audit.Logger, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditLog: auditLog,
		logger:   logger,
	}
}

// GetAuditRecord godoc
// @Summary Retrieve the audit record for a query
// @Description Every delivered answer has exactly one immutable audit record, retrievable by query id
// @Tags audit
// @Produce json
// @Param query_id path string true "Query ID"
// @Security Bearer
// @Success 200 {object} dto.AuditRecordResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/audit/{query_id} [get]
func (h *AuditHandler) GetAuditRecord(c *fiber.Ctx) error {
	queryID, err := uuid.Parse(c.Params("query_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query ID",
		})
	}

	record, err := h.auditLog.GetByQueryID(c.Context(), queryID)
	if err != nil {
		if errors.Is(err, errs.ErrAuditRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Audit record not found",
			})
		}
		h.logger.Error("Failed to load audit record",
			zap.String("query_id", queryID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load audit record",
		})
	}

	return c.JSON(dto.AuditRecordResponse{
		QueryID:           record.QueryID.String(),
		QueryTextRedacted: record.QueryTextRedacted,
		RetrievedChunkIDs: record.RetrievedChunkIDs,
		PIIEntitiesFound:  record.PIIEntitiesFound,
		AnswerText:        record.AnswerText,
		Grounded:          record.Grounded,
		Citations:         record.Citations,
		LatencyMs:         record.LatencyMs,
		CreatedAt:         record.CreatedAt.Format(time.RFC3339),
	})
}
