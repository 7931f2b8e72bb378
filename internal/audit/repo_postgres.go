package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"passport-platform/pkg/utils"
)

// PostgresRepo stores audit logs in the audit_log table.
// The table carries a trigger that rejects UPDATE and DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const auditLogColumns = `audit_log_id, person_id, person_name, study_id, action_type,
affected_relation, affected_record_id, affected_record, description, occurred_at`

func (r *PostgresRepo) Append(ctx context.Context, l AuditLog) error {
	const q = `
INSERT INTO audit_log (` + auditLogColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		l.ID,
		l.PersonID,
		l.PersonName,
		l.StudyID,
		string(l.ActionType),
		l.AffectedRelation,
		l.AffectedRecordID,
		l.AffectedRecord,
		l.Description,
		l.OccurredAt,
	)
	return appendError(l.ID, err)
}

func appendError(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case utils.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	default:
		return fmt.Errorf("insert audit_log: %w", err)
	}
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (AuditLog, error) {
	q := `SELECT ` + auditLogColumns + ` FROM audit_log WHERE audit_log_id = $1`
	l, err := scanAuditLog(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AuditLog{}, ErrNotFound
		}
		return AuditLog{}, err
	}
	return l, nil
}

func (r *PostgresRepo) ListByStudy(ctx context.Context, studyID int64) ([]AuditLog, error) {
	q := `SELECT ` + auditLogColumns + ` FROM audit_log WHERE study_id = $1 ORDER BY occurred_at, audit_log_id`
	return r.query(ctx, q, studyID)
}

func (r *PostgresRepo) ListByAffectedRecord(ctx context.Context, recordID string) ([]AuditLog, error) {
	q := `SELECT ` + auditLogColumns + ` FROM audit_log WHERE affected_record_id = $1 ORDER BY occurred_at, audit_log_id`
	return r.query(ctx, q, recordID)
}

func (r *PostgresRepo) FindByIDs(ctx context.Context, ids []string) ([]AuditLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + auditLogColumns + ` FROM audit_log WHERE audit_log_id = ANY($1) ORDER BY occurred_at, audit_log_id`
	return r.query(ctx, q, ids)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var out []AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s rowScanner) (AuditLog, error) {
	var (
		l      AuditLog
		action string
	)
	if err := s.Scan(
		&l.ID,
		&l.PersonID,
		&l.PersonName,
		&l.StudyID,
		&action,
		&l.AffectedRelation,
		&l.AffectedRecordID,
		&l.AffectedRecord,
		&l.Description,
		&l.OccurredAt,
	); err != nil {
		return AuditLog{}, err
	}
	l.ActionType = ActionType(action)
	l.OccurredAt = l.OccurredAt.UTC()
	return l, nil
}
