package passport

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Passport

	// FailCreate, when set, is returned from Create.
	FailCreate error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, rows: make(map[int64]Passport)}
}

// SetNextID makes the next Create use id.
func (r *MemoryRepo) SetNextID(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID = id
}

func (r *MemoryRepo) Create(_ context.Context, p Passport) (Passport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return Passport{}, r.FailCreate
	}
	p.ID = r.nextID
	r.nextID++
	r.rows[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) Get(_ context.Context, id int64) (Passport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return Passport{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) ListByStudy(_ context.Context, studyID int64) ([]Passport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Passport
	for _, p := range r.rows {
		if p.StudyID == studyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, id int64, status Status, failureReason, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.FailureReason = failureReason
	if digest != "" {
		p.DocumentDigest = digest
	}
	r.rows[id] = p
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}
