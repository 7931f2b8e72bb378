package audit

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("audit: log not found")
	ErrDuplicateID = errors.New("audit: log id already stored")
)

// Appender is the only write path. There are no update or delete methods.
type Appender interface {
	Append(ctx context.Context, l AuditLog) error
}

// Reader serves the queries the book compiler and the HTTP surface need.
// List methods return logs in timeline order (see Less).
type Reader interface {
	Get(ctx context.Context, id string) (AuditLog, error)
	ListByStudy(ctx context.Context, studyID int64) ([]AuditLog, error)
	ListByAffectedRecord(ctx context.Context, recordID string) ([]AuditLog, error)
	// FindByIDs returns the logs that exist among ids; unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]AuditLog, error)
}

type Repository interface {
	Appender
	Reader
}
