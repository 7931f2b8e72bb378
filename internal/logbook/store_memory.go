package logbook

import (
	"context"
	"sync"
)

// MemoryStore keeps book rows in a set keyed by BookID.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[BookID]struct{}

	// FailLink, when set, makes Link fail without writing anything.
	FailLink error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[BookID]struct{})}
}

func (s *MemoryStore) Link(_ context.Context, passportID int64, auditLogIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLink != nil {
		return s.FailLink
	}
	for _, id := range auditLogIDs {
		s.rows[BookID{PassportID: passportID, AuditLogID: id}] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) ListByPassport(_ context.Context, passportID int64) ([]BookID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []BookID
	for id := range s.rows {
		if id.PassportID == passportID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteByPassport(_ context.Context, passportID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.rows {
		if id.PassportID == passportID {
			delete(s.rows, id)
		}
	}
	return nil
}

// Len returns the total number of rows across all passports.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
