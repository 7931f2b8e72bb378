package logbook

import (
	"errors"
	"fmt"

	"passport-platform/internal/audit"
)

// BookID is the composite identity of a book row. It is comparable and usable as a map key.
type BookID struct {
	PassportID int64  `json:"passport_id"`
	AuditLogID string `json:"audit_log_id"`
}

// Entry is a book row expanded to the audit log it references.
type Entry struct {
	ID  BookID         `json:"id"`
	Log audit.AuditLog `json:"audit_log"`
}

// Scope names what a passport covers.
type Scope struct {
	StudyID      int64
	DeploymentID int64
}

// ErrUnknownReference reports a book row naming a passport or audit log that does not exist.
var ErrUnknownReference = errors.New("logbook: unknown passport or audit log")

// CompilationError wraps any failure while selecting or linking events for a passport.
type CompilationError struct {
	PassportID int64
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("logbook: compile passport %d: %v", e.PassportID, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }
