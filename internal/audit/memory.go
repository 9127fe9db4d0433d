package audit

import (
	"context"
	"fmt"
	"sync"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"

	"github.com/google/uuid"
)

// MemoryLogger is an in-process audit store for development and tests. It
// enforces the same append-only contract as the durable backend.
type MemoryLogger struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.AuditRecord
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{
		records: make(map[uuid.UUID]models.AuditRecord),
	}
}

func (l *MemoryLogger) Record(ctx context.Context, record *models.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[record.QueryID]; exists {
		return &errs.AuditWriteError{
			Err: fmt.Errorf("audit record for query %s already exists", record.QueryID),
		}
	}

	l.records[record.QueryID] = *record
	return nil
}

func (l *MemoryLogger) GetByQueryID(ctx context.Context, queryID uuid.UUID) (*models.AuditRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[queryID]
	if !ok {
		return nil, errs.ErrAuditRecordNotFound
	}

	// Return a copy so callers cannot rewrite history through the pointer.
	return &record, nil
}
