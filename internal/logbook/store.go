package logbook

import "context"

// Store persists book rows. Rows are only ever inserted or removed with their passport.
type Store interface {
	// Link adds (passportID, id) for every id atomically. Existing pairs are left alone.
	Link(ctx context.Context, passportID int64, auditLogIDs []string) error
	ListByPassport(ctx context.Context, passportID int64) ([]BookID, error)
	DeleteByPassport(ctx context.Context, passportID int64) error
}
