package passport

import "context"

// Repository persists passports.
type Repository interface {
	// Create stores p and returns it with its assigned ID.
	Create(ctx context.Context, p Passport) (Passport, error)
	Get(ctx context.Context, id int64) (Passport, error)
	ListByStudy(ctx context.Context, studyID int64) ([]Passport, error)
	// UpdateStatus moves the pipeline bookkeeping fields; content fields are never written.
	UpdateStatus(ctx context.Context, id int64, status Status, failureReason, digest string) error
	// Delete removes the passport and its book rows. It reports whether a row existed.
	Delete(ctx context.Context, id int64) (bool, error)
}
