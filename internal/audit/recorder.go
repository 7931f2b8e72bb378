package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"passport-platform/internal/metrics"
	"passport-platform/pkg/logger"
)

var ErrInvalidEvent = errors.New("audit: invalid event")

// WriteError reports that a fully built audit log could not be stored.
type WriteError struct {
	LogID string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit: write %s: %v", e.LogID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Change describes one mutation performed by a business operation.
type Change struct {
	ActorID   string
	ActorName string
	StudyID   int64
	Action    ActionType
	Relation  string
	// RecordID is the affected record key as text. Composite keys are formatted by the caller, e.g. "(3, 9)".
	RecordID string
	// Entity is the affected record after the change; nil (or a nil pointer) for deletes.
	Entity      any
	Description string
}

// Recorder turns Changes into stored AuditLogs.
type Recorder struct {
	repo  Appender
	clock func() time.Time
	newID func() string
}

func NewRecorder(repo Appender) *Recorder {
	return &Recorder{repo: repo, clock: time.Now, newID: uuid.NewString}
}

// WithClock replaces the timestamp source. Used by tests.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Record snapshots the entity, stamps id and time, and appends the log.
// A snapshot that cannot be serialized is replaced by a placeholder; the log is still written.
func (r *Recorder) Record(ctx context.Context, c Change) (AuditLog, error) {
	if r.repo == nil {
		return AuditLog{}, errors.New("audit: repository not configured")
	}
	if !c.Action.Valid() || c.Relation == "" || c.StudyID == 0 {
		return AuditLog{}, ErrInvalidEvent
	}

	l := AuditLog{
		ID:               r.newID(),
		PersonID:         c.ActorID,
		PersonName:       c.ActorName,
		StudyID:          c.StudyID,
		ActionType:       c.Action,
		AffectedRelation: c.Relation,
		AffectedRecordID: c.RecordID,
		AffectedRecord:   Snapshot(c.Entity),
		Description:      c.Description,
		OccurredAt:       r.clock().UTC(),
	}

	if err := r.repo.Append(ctx, l); err != nil {
		metrics.AuditEventsRecorded.WithLabelValues(string(c.Action), metrics.OutcomeError).Inc()
		return AuditLog{}, &WriteError{LogID: l.ID, Err: err}
	}
	metrics.AuditEventsRecorded.WithLabelValues(string(c.Action), metrics.OutcomeOK).Inc()
	return l, nil
}

// RecordBestEffort is Record for callers whose primary operation must not fail on audit storage.
// Failures are logged and swallowed.
func (r *Recorder) RecordBestEffort(ctx context.Context, c Change) {
	if _, err := r.Record(ctx, c); err != nil {
		logger.From(ctx).Error("audit record failed",
			"study_id", c.StudyID,
			"action", string(c.Action),
			"relation", c.Relation,
			"record_id", c.RecordID,
			"err", err,
		)
	}
}

// Snapshot serializes entity to JSON. nil and nil pointers yield NoSnapshot.
// Marshal errors and panics raised by custom marshalers both yield the placeholder text.
func Snapshot(entity any) (out string) {
	if isNil(entity) {
		return NoSnapshot
	}
	defer func() {
		if r := recover(); r != nil {
			out = unserializablePrefix + fmt.Sprint(r)
		}
	}()
	b, err := json.Marshal(entity)
	if err != nil {
		return unserializablePrefix + err.Error()
	}
	return string(b)
}

const unserializablePrefix = "Unable to serialize object: "

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
