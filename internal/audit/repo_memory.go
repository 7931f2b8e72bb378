package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory append-only repository for tests and local runs.
type MemoryRepo struct {
	mu   sync.Mutex
	logs []AuditLog

	// FailAppend, when set, is returned from Append instead of storing.
	FailAppend error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, l AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppend != nil {
		return r.FailAppend
	}
	for _, existing := range r.logs {
		if existing.ID == l.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
		}
	}
	r.logs = append(r.logs, l)
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return AuditLog{}, ErrNotFound
}

func (r *MemoryRepo) ListByStudy(_ context.Context, studyID int64) ([]AuditLog, error) {
	return r.filter(func(l AuditLog) bool { return l.StudyID == studyID }), nil
}

func (r *MemoryRepo) ListByAffectedRecord(_ context.Context, recordID string) ([]AuditLog, error) {
	return r.filter(func(l AuditLog) bool { return l.AffectedRecordID == recordID }), nil
}

func (r *MemoryRepo) FindByIDs(_ context.Context, ids []string) ([]AuditLog, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(func(l AuditLog) bool {
		_, ok := want[l.ID]
		return ok
	}), nil
}

// Logs returns a copy of everything appended, in append order.
func (r *MemoryRepo) Logs() []AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditLog, len(r.logs))
	copy(out, r.logs)
	return out
}

func (r *MemoryRepo) filter(keep func(AuditLog) bool) []AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditLog
	for _, l := range r.logs {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
