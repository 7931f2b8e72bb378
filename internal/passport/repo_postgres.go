package passport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo stores passports in the passport table.
// Deleting a row cascades to audit_log_book.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const passportColumns = `passport_id, study_id, deployment_id, created_at, created_by,
approved_at, approved_by, status, failure_reason, document_digest`

func (r *PostgresRepo) Create(ctx context.Context, p Passport) (Passport, error) {
	const q = `
INSERT INTO passport (study_id, deployment_id, created_at, created_by, approved_at, approved_by, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING passport_id
`
	if err := r.db.QueryRowContext(ctx, q,
		p.StudyID,
		p.DeploymentID,
		p.CreatedAt,
		p.CreatedBy,
		p.ApprovedAt,
		p.ApprovedBy,
		string(p.Status),
	).Scan(&p.ID); err != nil {
		return Passport{}, fmt.Errorf("insert passport: %w", err)
	}
	return p, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (Passport, error) {
	q := `SELECT ` + passportColumns + ` FROM passport WHERE passport_id = $1`
	p, err := scanPassport(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Passport{}, ErrNotFound
		}
		return Passport{}, err
	}
	return p, nil
}

func (r *PostgresRepo) ListByStudy(ctx context.Context, studyID int64) ([]Passport, error) {
	q := `SELECT ` + passportColumns + ` FROM passport WHERE study_id = $1 ORDER BY passport_id`
	rows, err := r.db.QueryContext(ctx, q, studyID)
	if err != nil {
		return nil, fmt.Errorf("query passport: %w", err)
	}
	defer rows.Close()

	var out []Passport
	for rows.Next() {
		p, err := scanPassport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id int64, status Status, failureReason, digest string) error {
	const q = `
UPDATE passport
SET status = $2,
    failure_reason = $3,
    document_digest = CASE WHEN $4::text = '' THEN document_digest ELSE $4::text END
WHERE passport_id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, string(status), failureReason, digest)
	if err != nil {
		return fmt.Errorf("update passport status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM passport WHERE passport_id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("delete passport: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassport(s rowScanner) (Passport, error) {
	var (
		p      Passport
		status string
	)
	if err := s.Scan(
		&p.ID,
		&p.StudyID,
		&p.DeploymentID,
		&p.CreatedAt,
		&p.CreatedBy,
		&p.ApprovedAt,
		&p.ApprovedBy,
		&status,
		&p.FailureReason,
		&p.DocumentDigest,
	); err != nil {
		return Passport{}, err
	}
	p.Status = Status(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.ApprovedAt = p.ApprovedAt.UTC()
	return p, nil
}
