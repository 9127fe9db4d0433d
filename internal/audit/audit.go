package audit

import (
	"context"

	"guardian-rag/internal/models"

	"github.com/google/uuid"
)

// Logger is the append-only audit trail. Records are immutable after
// write: no implementation may update or delete one. A failed write is
// fatal for the request that produced it, because no answer may ever be
// delivered without a corresponding audit record.
type Logger interface {
	Record(ctx context.Context, record *models.AuditRecord) error
	GetByQueryID(ctx context.Context, queryID uuid.UUID) (*models.AuditRecord, error)
}
