package logbook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passport-platform/internal/audit"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, logs ...audit.AuditLog) *audit.MemoryRepo {
	t.Helper()
	repo := audit.NewMemoryRepo()
	for _, l := range logs {
		require.NoError(t, repo.Append(context.Background(), l))
	}
	return repo
}

func TestCompile_SelectsByStudyOnly(t *testing.T) {
	repo := seed(t,
		audit.AuditLog{ID: "a", StudyID: 7, OccurredAt: t0},
		audit.AuditLog{ID: "b", StudyID: 7, OccurredAt: t0.Add(time.Minute)},
		audit.AuditLog{ID: "c", StudyID: 9, AffectedRecordID: "11", OccurredAt: t0},
	)
	store := NewMemoryStore()
	c := NewCompiler(repo, store)

	require.NoError(t, c.Compile(context.Background(), 1, Scope{StudyID: 7, DeploymentID: 11}))

	entries, err := c.FindByPassportID(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Log.ID)
	assert.Equal(t, "b", entries[1].Log.ID)
	assert.Equal(t, BookID{PassportID: 1, AuditLogID: "a"}, entries[0].ID)
}

func TestCompile_Idempotent(t *testing.T) {
	repo := seed(t,
		audit.AuditLog{ID: "a", StudyID: 7, OccurredAt: t0},
		audit.AuditLog{ID: "b", StudyID: 7, OccurredAt: t0},
	)
	store := NewMemoryStore()
	c := NewCompiler(repo, store)
	ctx := context.Background()

	require.NoError(t, c.Compile(ctx, 1, Scope{StudyID: 7}))
	require.NoError(t, c.Compile(ctx, 1, Scope{StudyID: 7}))
	assert.Equal(t, 2, store.Len())

	// A later event is added to the existing set, not appended twice.
	require.NoError(t, repo.Append(ctx, audit.AuditLog{ID: "z", StudyID: 7, OccurredAt: t0.Add(time.Hour)}))
	require.NoError(t, c.Compile(ctx, 1, Scope{StudyID: 7}))
	assert.Equal(t, 3, store.Len())
}

func TestCompile_SameEventInSeveralBooks(t *testing.T) {
	repo := seed(t, audit.AuditLog{ID: "a", StudyID: 7, OccurredAt: t0})
	store := NewMemoryStore()
	c := NewCompiler(repo, store)
	ctx := context.Background()

	require.NoError(t, c.Compile(ctx, 1, Scope{StudyID: 7}))
	require.NoError(t, c.Compile(ctx, 2, Scope{StudyID: 7}))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, c.Drop(ctx, 1))
	entries, err := c.FindByPassportID(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, repo.Logs(), 1)
}

func TestCompile_EmptySelectionIsNotAnError(t *testing.T) {
	c := NewCompiler(audit.NewMemoryRepo(), NewMemoryStore())
	require.NoError(t, c.Compile(context.Background(), 1, Scope{StudyID: 7}))

	entries, err := c.FindByPassportID(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompile_LinkFailureIsCompilationError(t *testing.T) {
	repo := seed(t, audit.AuditLog{ID: "a", StudyID: 7, OccurredAt: t0})
	store := NewMemoryStore()
	boom := errors.New("tx aborted")
	store.FailLink = boom

	err := NewCompiler(repo, store).Compile(context.Background(), 5, Scope{StudyID: 7})

	var ce *CompilationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(5), ce.PassportID)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())
}

func TestCompile_WithAffectedRecordSelector(t *testing.T) {
	repo := seed(t,
		audit.AuditLog{ID: "a", StudyID: 7, AffectedRecordID: "11", OccurredAt: t0.Add(time.Minute)},
		audit.AuditLog{ID: "b", StudyID: 9, AffectedRecordID: "11", OccurredAt: t0},
		audit.AuditLog{ID: "c", StudyID: 9, AffectedRecordID: "12", OccurredAt: t0},
	)
	c := NewCompiler(repo, NewMemoryStore(), WithSelector(Union{StudySelector{}, AffectedRecordSelector{}}))
	ctx := context.Background()

	require.NoError(t, c.Compile(ctx, 1, Scope{StudyID: 7, DeploymentID: 11}))

	entries, err := c.FindByPassportID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Log.ID)
	assert.Equal(t, "a", entries[1].Log.ID)
}

func TestFindByIDs_TimelineOrder(t *testing.T) {
	repo := seed(t,
		audit.AuditLog{ID: "late", StudyID: 1, OccurredAt: t0.Add(time.Hour)},
		audit.AuditLog{ID: "early", StudyID: 2, OccurredAt: t0},
	)
	c := NewCompiler(repo, NewMemoryStore())

	logs, err := c.FindByIDs(context.Background(), []string{"late", "early", "nope"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "early", logs[0].ID)
	assert.Equal(t, "late", logs[1].ID)
}
