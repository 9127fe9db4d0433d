package errs

import (
	"errors"
	"fmt"
)

// ConfigError signals an invalid configuration combination. It is fatal at
// startup and never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// EmbeddingServiceError wraps a failure of the external embedding service.
// Transient failures (network, rate limit, timeout) are eligible for retry;
// integrity violations such as mismatched vector counts are not.
type EmbeddingServiceError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Transient {
		return fmt.Sprintf("embedding service (transient): %v", e.Err)
	}
	return fmt.Sprintf("embedding service: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// GenerationServiceError wraps a failure of the external generation service.
type GenerationServiceError struct {
	Transient bool
	Err       error
}

func (e *GenerationServiceError) Error() string {
	if e.Transient {
		return fmt.Sprintf("generation service (transient): %v", e.Err)
	}
	return fmt.Sprintf("generation service: %v", e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// IndexIntegrityError signals a corrupted or inconsistent index state, such
// as a dimension mismatch between a query vector and stored embeddings.
// Never retried.
type IndexIntegrityError struct {
	Reason string
}

func (e *IndexIntegrityError) Error() string {
	return "index integrity: " + e.Reason
}

// AuditWriteError signals that an audit record could not be persisted. The
// request that produced it must fail: no answer is delivered without a
// corresponding audit record.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// ErrAuditRecordNotFound is returned when looking up an audit record by
// query id that was never written.
var ErrAuditRecordNotFound = errors.New("audit record not found")

// ErrDocumentNotFound is returned when a document id is unknown to the index.
var ErrDocumentNotFound = errors.New("document not found")

// IsTransient reports whether err is a retryable external-service failure.
func IsTransient(err error) bool {
	var embErr *EmbeddingServiceError
	if errors.As(err, &embErr) {
		return embErr.Transient
	}
	var genErr *GenerationServiceError
	if errors.As(err, &genErr) {
		return genErr.Transient
	}
	return false
}
