package logbook

import (
	"context"
	"sort"
	"strconv"

	"passport-platform/internal/audit"
)

// Selector decides which audit logs belong to a book.
type Selector interface {
	Select(ctx context.Context, logs audit.Reader, scope Scope) ([]audit.AuditLog, error)
}

// StudySelector picks exactly the logs whose StudyID equals the scope's study.
type StudySelector struct{}

func (StudySelector) Select(ctx context.Context, logs audit.Reader, scope Scope) ([]audit.AuditLog, error) {
	return logs.ListByStudy(ctx, scope.StudyID)
}

// AffectedRecordSelector picks logs whose affected record is the scope's deployment.
// It widens a book beyond its study, so it is opt-in.
type AffectedRecordSelector struct{}

func (AffectedRecordSelector) Select(ctx context.Context, logs audit.Reader, scope Scope) ([]audit.AuditLog, error) {
	if scope.DeploymentID == 0 {
		return nil, nil
	}
	return logs.ListByAffectedRecord(ctx, strconv.FormatInt(scope.DeploymentID, 10))
}

// Union selects every log picked by at least one selector, without duplicates.
type Union []Selector

func (u Union) Select(ctx context.Context, logs audit.Reader, scope Scope) ([]audit.AuditLog, error) {
	seen := make(map[string]struct{})
	var out []audit.AuditLog
	for _, s := range u {
		picked, err := s.Select(ctx, logs, scope)
		if err != nil {
			return nil, err
		}
		for _, l := range picked {
			if _, dup := seen[l.ID]; dup {
				continue
			}
			seen[l.ID] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return audit.Less(out[i], out[j]) })
	return out, nil
}
