package passport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passport-platform/internal/audit"
	"passport-platform/internal/bookview"
	"passport-platform/internal/logbook"
	"passport-platform/internal/render"
	"passport-platform/internal/seal"
	"passport-platform/internal/testutil"
)

type fakeRenderer struct {
	mu   sync.Mutex
	reqs []render.Request
	err  error
	// during runs before the render returns, while the passport is still in flight.
	during func()
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request) ([]byte, error) {
	if f.during != nil {
		f.during()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return testutil.MinimalPDF("rendered book"), nil
}

func (f *fakeRenderer) last() render.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fixture struct {
	logs      *audit.MemoryRepo
	books     *logbook.MemoryStore
	passports *MemoryRepo
	renderer  *fakeRenderer
	keystore  testutil.Keystore
	lifecycle *Lifecycle
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		logs:      audit.NewMemoryRepo(),
		books:     logbook.NewMemoryStore(),
		passports: NewMemoryRepo(),
		renderer:  &fakeRenderer{},
		keystore:  testutil.WriteKeystore(t, "Passport QA Signer", "changeit"),
		now:       time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
	}
	view, err := bookview.New()
	require.NoError(t, err)

	f.lifecycle = NewLifecycle(Deps{
		Repo:     f.passports,
		Books:    logbook.NewCompiler(f.logs, f.books),
		View:     view,
		Renderer: f.renderer,
		Sealer: seal.NewSealer(seal.Identity{
			KeystorePath:     f.keystore.Path,
			KeystorePassword: f.keystore.Password,
			Name:             "Passport QA Signer",
			Reason:           "Passport approval",
		}),
	}).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) record(t *testing.T, studyID int64, desc string, at time.Time) audit.AuditLog {
	t.Helper()
	return f.recordChange(t, at, audit.Change{
		StudyID:     studyID,
		Action:      audit.ActionUpdate,
		Relation:    "model",
		RecordID:    "1",
		Entity:      map[string]string{"description": desc},
		Description: desc,
	})
}

func (f *fixture) recordChange(t *testing.T, at time.Time, c audit.Change) audit.AuditLog {
	t.Helper()
	c.ActorID, c.ActorName = "7", "Jane QA"
	l, err := audit.NewRecorder(f.logs).WithClock(func() time.Time { return at }).Record(context.Background(), c)
	require.NoError(t, err)
	return l
}

var qa = Actor{ID: "7", Name: "Jane QA"}

func TestCreate_Study42Passport9(t *testing.T) {
	f := newFixture(t)
	t1 := f.now.Add(-3 * time.Hour)
	t2 := f.now.Add(-2 * time.Hour)
	t3 := f.now.Add(-1 * time.Hour)

	type dataset struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// Recorded out of order to prove the book follows occurredAt.
	e3 := f.recordChange(t, t3, audit.Change{StudyID: 42, Action: audit.ActionDelete, Relation: "feature", RecordID: "55", Description: "Feature 55 deleted"})
	e1 := f.recordChange(t, t1, audit.Change{StudyID: 42, Action: audit.ActionCreate, Relation: "dataset", RecordID: "100", Entity: dataset{100, "vitals"}, Description: "Dataset 100 created"})
	f.record(t, 41, "other study", t2)
	e2 := f.recordChange(t, t2, audit.Change{StudyID: 42, Action: audit.ActionUpdate, Relation: "dataset", RecordID: "100", Entity: &dataset{100, "vitals-v2"}, Description: "Dataset 100 updated"})
	f.passports.SetNextID(9)

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5, BaseURL: "https://app.example/"})
	require.NoError(t, err)

	p := res.Passport
	assert.Equal(t, int64(9), p.ID)
	assert.Equal(t, StatusSealed, p.Status)
	assert.Equal(t, f.now, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.ApprovedAt)
	assert.Equal(t, "7", p.ApprovedBy)

	entries, err := f.lifecycle.Book(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{e1.ID, e2.ID, e3.ID}, []string{entries[0].Log.ID, entries[1].Log.ID, entries[2].Log.ID})
	for _, e := range entries {
		assert.Equal(t, int64(9), e.ID.PassportID)
	}

	html := f.renderer.last().HTML
	created, updated, deleted := strings.Index(html, "Dataset 100 created"), strings.Index(html, "Dataset 100 updated"), strings.Index(html, "Feature 55 deleted")
	require.True(t, created >= 0 && updated >= 0 && deleted >= 0, "book html misses an event")
	assert.Less(t, created, updated)
	assert.Less(t, updated, deleted)
	assert.NotContains(t, html, "other study")
	assert.Equal(t, audit.NoSnapshot, entries[2].Log.AffectedRecord)
	assert.Equal(t, "https://app.example/", f.renderer.last().BaseURL)

	v, err := seal.Verify(res.Document, f.keystore.Certificate)
	require.NoError(t, err)
	assert.Equal(t, "Passport QA Signer", v.Signer.Subject.CommonName)
	assert.True(t, seal.VerifyUnsignedPrefix(testutil.MinimalPDF("rendered book"), res.Document))

	sum := sha256.Sum256(res.Document)
	stored, err := f.lifecycle.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.DocumentDigest)
	assert.Equal(t, StatusSealed, stored.Status)
}

func TestCreate_RenderFailureMarksPassportFailed(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "x", f.now.Add(-time.Minute))
	f.renderer.err = &render.RenderError{Kind: render.KindContentLoad, Err: errors.New("timeout")}

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.Error(t, err)
	assert.Nil(t, res.Document)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageRender, se.Stage)
	assert.ErrorIs(t, err, render.ErrContentLoad)
	assert.True(t, IsInfrastructure(err))

	stored, err := f.lifecycle.Get(context.Background(), se.PassportID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "timeout")
	assert.Empty(t, stored.DocumentDigest)
}

func TestCreate_SealFailureReturnsNoBytes(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.sealer = seal.NewSealer(seal.Identity{KeystorePath: testutil.WriteEmptyFile(t)})

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.Error(t, err)
	assert.Nil(t, res.Document)
	assert.ErrorIs(t, err, seal.ErrKeystoreEmpty)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSeal, se.Stage)

	stored, err := f.lifecycle.Get(context.Background(), se.PassportID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestCreate_CompileFailure(t *testing.T) {
	f := newFixture(t)
	f.books.FailLink = errors.New("tx aborted")
	f.record(t, 42, "x", f.now.Add(-time.Minute))

	_, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})

	var ce *logbook.CompilationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, IsInfrastructure(err))
	assert.Empty(t, f.renderer.reqs)
}

func TestCreate_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.lifecycle.Create(context.Background(), Actor{}, CreateRequest{StudyID: 42, DeploymentID: 5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type laterApproval struct{ by string }

func (a laterApproval) Approve(_ context.Context, _ Actor, createdAt time.Time) (string, time.Time, error) {
	return a.by, createdAt.Add(time.Hour), nil
}

type earlierApproval struct{}

func (earlierApproval) Approve(_ context.Context, c Actor, createdAt time.Time) (string, time.Time, error) {
	return c.ID, createdAt.Add(-time.Second), nil
}

func TestCreate_ApprovalPolicy(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.approval = laterApproval{by: "director"}

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)
	assert.Equal(t, "director", res.Passport.ApprovedBy)
	assert.True(t, res.Passport.ApprovedAt.After(res.Passport.CreatedAt))

	f.lifecycle.approval = earlierApproval{}
	_, err = f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageCreate, se.Stage)
}

func TestRecompile_ClosedAfterSealing(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "before", f.now.Add(-time.Hour))

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)

	f.record(t, 42, "after", f.now.Add(time.Hour))
	err = f.lifecycle.Recompile(context.Background(), res.Passport.ID, 42)
	assert.ErrorIs(t, err, ErrBookClosed)

	entries, err := f.lifecycle.Book(context.Background(), res.Passport.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecompile_ClosedWhilePipelineInFlight(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "before", f.now.Add(-time.Hour))
	f.passports.SetNextID(9)

	var inFlight error
	f.renderer.during = func() {
		f.record(t, 42, "late", f.now.Add(time.Minute))
		inFlight = f.lifecycle.Recompile(context.Background(), 9, 42)
	}

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)
	require.Equal(t, int64(9), res.Passport.ID)
	assert.ErrorIs(t, inFlight, ErrBookClosed)

	entries, err := f.lifecycle.Book(context.Background(), res.Passport.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "before", entries[0].Log.Description)
}

func TestRecompile_FailedPassportPicksUpNewEvents(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "before", f.now.Add(-time.Hour))
	f.renderer.err = errors.New("boom")

	_, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	var se *StageError
	require.ErrorAs(t, err, &se)

	f.record(t, 42, "after", f.now.Add(time.Hour))
	require.NoError(t, f.lifecycle.Recompile(context.Background(), se.PassportID, 0))
	require.NoError(t, f.lifecycle.Recompile(context.Background(), se.PassportID, 0))

	entries, err := f.lifecycle.Book(context.Background(), se.PassportID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	assert.ErrorIs(t, f.lifecycle.Recompile(context.Background(), se.PassportID, 41), ErrInvalidRequest)
}

func TestDelete_CascadesBookButKeepsAuditLogs(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "a", f.now.Add(-time.Hour))
	f.record(t, 42, "b", f.now.Add(-time.Minute))

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)
	require.Equal(t, 2, f.books.Len())

	require.NoError(t, f.lifecycle.Delete(context.Background(), qa, res.Passport.ID))
	assert.Zero(t, f.books.Len())
	assert.Len(t, f.logs.Logs(), 2)

	_, err = f.lifecycle.Get(context.Background(), res.Passport.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.lifecycle.Delete(context.Background(), qa, res.Passport.ID), ErrNotFound)
}

func TestListByStudyAndEvidence(t *testing.T) {
	f := newFixture(t)
	l1 := f.record(t, 42, "a", f.now.Add(-time.Hour))

	_, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)
	_, err = f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 43, DeploymentID: 6})
	require.NoError(t, err)

	list, err := f.lifecycle.ListByStudy(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.lifecycle.ListByStudy(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	logs, err := f.lifecycle.Evidence(context.Background(), []string{l1.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, l1.ID, logs[0].ID)

	_, err = f.lifecycle.Evidence(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.lifecycle.Book(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_IndependentPassportsInParallel(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "a", f.now.Add(-time.Hour))
	f.record(t, 43, "b", f.now.Add(-time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: int64(42 + i%2), DeploymentID: 5})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 4, f.books.Len())
}

func TestAuditor_RecordsSealAndDelete(t *testing.T) {
	f := newFixture(t)
	f.record(t, 42, "a", f.now.Add(-time.Hour))
	f.lifecycle.auditor = audit.NewRecorder(f.logs).WithClock(func() time.Time { return f.now })
	f.passports.SetNextID(9)

	res, err := f.lifecycle.Create(context.Background(), qa, CreateRequest{StudyID: 42, DeploymentID: 5})
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.Delete(context.Background(), qa, res.Passport.ID))

	logs := f.logs.Logs()
	require.Len(t, logs, 3)
	created, deleted := logs[1], logs[2]

	assert.Equal(t, audit.ActionCreate, created.ActionType)
	assert.Equal(t, "passport", created.AffectedRelation)
	assert.Equal(t, "9", created.AffectedRecordID)
	assert.Contains(t, created.AffectedRecord, `"status":"sealed"`)
	assert.Equal(t, "7", created.PersonID)

	assert.Equal(t, audit.ActionDelete, deleted.ActionType)
	assert.Equal(t, audit.NoSnapshot, deleted.AffectedRecord)
	assert.Equal(t, int64(42), deleted.StudyID)
}
