package logbook

import (
	"context"
	"fmt"
	"sort"

	"passport-platform/internal/audit"
	"passport-platform/pkg/logger"
)

// Compiler builds and reads audit log books.
type Compiler struct {
	logs     audit.Reader
	store    Store
	selector Selector
}

type Option func(*Compiler)

// WithSelector replaces the default study selector.
func WithSelector(s Selector) Option {
	return func(c *Compiler) { c.selector = s }
}

func NewCompiler(logs audit.Reader, store Store, opts ...Option) *Compiler {
	c := &Compiler{logs: logs, store: store, selector: StudySelector{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compile links every selected log to the passport. Running it again only adds missing rows.
func (c *Compiler) Compile(ctx context.Context, passportID int64, scope Scope) error {
	selected, err := c.selector.Select(ctx, c.logs, scope)
	if err != nil {
		return &CompilationError{PassportID: passportID, Err: fmt.Errorf("select: %w", err)}
	}

	ids := make([]string, 0, len(selected))
	for _, l := range selected {
		ids = append(ids, l.ID)
	}
	if err := c.store.Link(ctx, passportID, ids); err != nil {
		return &CompilationError{PassportID: passportID, Err: fmt.Errorf("link: %w", err)}
	}

	logger.From(ctx).Debug("audit log book compiled",
		"passport_id", passportID,
		"study_id", scope.StudyID,
		"events", len(ids),
	)
	return nil
}

// FindByPassportID returns the book of a passport in timeline order.
func (c *Compiler) FindByPassportID(ctx context.Context, passportID int64) ([]Entry, error) {
	bookIDs, err := c.store.ListByPassport(ctx, passportID)
	if err != nil {
		return nil, fmt.Errorf("logbook: list passport %d: %w", passportID, err)
	}
	if len(bookIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(bookIDs))
	for _, b := range bookIDs {
		ids = append(ids, b.AuditLogID)
	}
	logs, err := c.logs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("logbook: load logs for passport %d: %w", passportID, err)
	}

	entries := make([]Entry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, Entry{ID: BookID{PassportID: passportID, AuditLogID: l.ID}, Log: l})
	}
	sort.Slice(entries, func(i, j int) bool { return audit.Less(entries[i].Log, entries[j].Log) })
	return entries, nil
}

// FindByIDs returns an ad-hoc evidence subset.
func (c *Compiler) FindByIDs(ctx context.Context, ids []string) ([]audit.AuditLog, error) {
	logs, err := c.logs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("logbook: find logs: %w", err)
	}
	sort.Slice(logs, func(i, j int) bool { return audit.Less(logs[i], logs[j]) })
	return logs, nil
}

// Drop removes the book rows of a passport. Audit logs are untouched.
func (c *Compiler) Drop(ctx context.Context, passportID int64) error {
	if err := c.store.DeleteByPassport(ctx, passportID); err != nil {
		return fmt.Errorf("logbook: drop passport %d: %w", passportID, err)
	}
	return nil
}
