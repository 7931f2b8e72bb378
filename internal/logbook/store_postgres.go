package logbook

import (
	"context"
	"database/sql"
	"fmt"

	"passport-platform/pkg/utils"
)

// PostgresStore persists book rows in audit_log_book.
// Rows of a deleted passport go away through ON DELETE CASCADE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Link(ctx context.Context, passportID int64, auditLogIDs []string) error {
	if len(auditLogIDs) == 0 {
		return nil
	}
	const q = `
INSERT INTO audit_log_book (passport_id, audit_log_id)
VALUES ($1, $2)
ON CONFLICT (passport_id, audit_log_id) DO NOTHING
`
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return fmt.Errorf("prepare book link: %w", err)
		}
		defer stmt.Close()

		for _, id := range auditLogIDs {
			if _, err := stmt.ExecContext(ctx, passportID, id); err != nil {
				return linkError(passportID, id, err)
			}
		}
		return nil
	})
}

// linkError names the missing side when a book row references a passport or audit log that is gone.
func linkError(passportID int64, auditLogID string, err error) error {
	if utils.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: passport %d or audit log %s", ErrUnknownReference, passportID, auditLogID)
	}
	return fmt.Errorf("link %s: %w", auditLogID, err)
}

func (s *PostgresStore) ListByPassport(ctx context.Context, passportID int64) ([]BookID, error) {
	const q = `SELECT passport_id, audit_log_id FROM audit_log_book WHERE passport_id = $1`
	rows, err := s.db.QueryContext(ctx, q, passportID)
	if err != nil {
		return nil, fmt.Errorf("query audit_log_book: %w", err)
	}
	defer rows.Close()

	var out []BookID
	for rows.Next() {
		var id BookID
		if err := rows.Scan(&id.PassportID, &id.AuditLogID); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteByPassport(ctx context.Context, passportID int64) error {
	const q = `DELETE FROM audit_log_book WHERE passport_id = $1`
	if _, err := s.db.ExecContext(ctx, q, passportID); err != nil {
		return fmt.Errorf("delete audit_log_book: %w", err)
	}
	return nil
}
