package audit

import "time"

// ActionType is the kind of mutation an audit event records.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// NoSnapshot is stored as AffectedRecord when there is no entity to snapshot, e.g. after a delete.
const NoSnapshot = "None"

// AuditLog is an immutable fact about one mutation.
//
// Invariants:
// - Written once; never updated or deleted by this service.
// - OccurredAt and ID are assigned by the Recorder, not the caller.
type AuditLog struct {
	ID               string     `json:"audit_log_id"`
	PersonID         string     `json:"person_id"`
	PersonName       string     `json:"person_name"`
	StudyID          int64      `json:"study_id"`
	ActionType       ActionType `json:"action_type"`
	AffectedRelation string     `json:"affected_relation"`
	AffectedRecordID string     `json:"affected_record_id"`
	// AffectedRecord is a JSON snapshot of the entity, NoSnapshot, or a serialization placeholder.
	AffectedRecord string    `json:"affected_record"`
	Description    string    `json:"description"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Less orders logs on the book timeline: OccurredAt, then ID for equal timestamps.
func Less(a, b AuditLog) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}
	return a.ID < b.ID
}
