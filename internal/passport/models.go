package passport

import (
	"errors"
	"fmt"
	"time"
)

// Status tracks how far the sealing pipeline got for a passport.
type Status string

const (
	StatusCreated      Status = "created"
	StatusBookCompiled Status = "book_compiled"
	StatusRendered     Status = "rendered"
	StatusSealed       Status = "sealed"
	StatusFailed       Status = "failed"
)

// Passport is the record behind one sealed document.
// Content fields never change after creation; Status, FailureReason and DocumentDigest
// only follow the pipeline.
type Passport struct {
	ID           int64     `json:"passport_id"`
	StudyID      int64     `json:"study_id"`
	DeploymentID int64     `json:"deployment_id"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by"`
	ApprovedAt   time.Time `json:"approved_at"`
	ApprovedBy   string    `json:"approved_by"`

	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	// DocumentDigest is the hex SHA-256 of the signed PDF.
	DocumentDigest string `json:"document_digest,omitempty"`
}

// Actor is the verified caller driving a lifecycle operation.
type Actor struct {
	ID   string
	Name string
}

// CreateRequest selects what the passport covers and how its document is laid out.
type CreateRequest struct {
	StudyID      int64
	DeploymentID int64

	BaseURL   string
	Width     string
	Height    string
	Landscape bool
}

// Result is a sealed passport and its signed document.
type Result struct {
	Passport Passport
	Document []byte
}

// Stage names the lifecycle step an error happened in.
type Stage string

const (
	StageCreate  Stage = "create"
	StageCompile Stage = "compile"
	StageRender  Stage = "render"
	StageSeal    Stage = "seal"
)

var (
	ErrNotFound       = errors.New("passport: not found")
	ErrInvalidRequest = errors.New("passport: invalid request")
	ErrBookClosed     = errors.New("passport: book is closed")
)

// StageError reports the stage that stopped the pipeline. Err keeps the component's typed error.
type StageError struct {
	Stage      Stage
	PassportID int64
	Err        error
}

func (e *StageError) Error() string {
	if e.PassportID == 0 {
		return fmt.Sprintf("passport: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("passport %d: %s: %v", e.PassportID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
