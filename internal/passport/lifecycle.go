package passport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"passport-platform/internal/audit"
	"passport-platform/internal/bookview"
	"passport-platform/internal/logbook"
	"passport-platform/internal/metrics"
	"passport-platform/internal/render"
	"passport-platform/pkg/logger"
)

// BookCompiler is the part of logbook.Compiler the lifecycle drives.
type BookCompiler interface {
	Compile(ctx context.Context, passportID int64, scope logbook.Scope) error
	FindByPassportID(ctx context.Context, passportID int64) ([]logbook.Entry, error)
	FindByIDs(ctx context.Context, ids []string) ([]audit.AuditLog, error)
	Drop(ctx context.Context, passportID int64) error
}

// BookView turns a compiled book into a printable HTML document.
type BookView interface {
	HTML(h bookview.Header, entries []logbook.Entry) (string, error)
}

// Sealer signs a rendered PDF.
type Sealer interface {
	Sign(ctx context.Context, unsigned []byte) ([]byte, error)
}

// ApprovalPolicy decides who approves a passport and when.
type ApprovalPolicy interface {
	Approve(ctx context.Context, creator Actor, createdAt time.Time) (approvedBy string, approvedAt time.Time, err error)
}

// Auditor records the lifecycle's own mutations. Failures must not reach the caller.
type Auditor interface {
	RecordBestEffort(ctx context.Context, c audit.Change)
}

// SelfApproval makes the creator the approver at creation time.
type SelfApproval struct{}

func (SelfApproval) Approve(_ context.Context, creator Actor, createdAt time.Time) (string, time.Time, error) {
	return creator.ID, createdAt, nil
}

// Lifecycle runs CREATED -> BOOK_COMPILED -> RENDERED -> SEALED for one passport per call.
// Stages are not retried; a failed passport stays recorded with Status failed.
type Lifecycle struct {
	repo     Repository
	books    BookCompiler
	view     BookView
	renderer render.Renderer
	sealer   Sealer
	approval ApprovalPolicy
	auditor  Auditor
	clock    func() time.Time
}

type Deps struct {
	Repo     Repository
	Books    BookCompiler
	View     BookView
	Renderer render.Renderer
	Sealer   Sealer
	// Approval defaults to SelfApproval.
	Approval ApprovalPolicy
	// Auditor is optional; nil skips recording passport events.
	Auditor Auditor
}

func NewLifecycle(d Deps) *Lifecycle {
	approval := d.Approval
	if approval == nil {
		approval = SelfApproval{}
	}
	return &Lifecycle{
		repo:     d.Repo,
		books:    d.Books,
		view:     d.View,
		renderer: d.Renderer,
		sealer:   d.Sealer,
		approval: approval,
		auditor:  d.Auditor,
		clock:    time.Now,
	}
}

// WithClock replaces the creation-time source. Used by tests.
func (l *Lifecycle) WithClock(clock func() time.Time) *Lifecycle {
	l.clock = clock
	return l
}

// Create runs the whole pipeline and returns the sealed passport with its signed document.
func (l *Lifecycle) Create(ctx context.Context, actor Actor, req CreateRequest) (res Result, err error) {
	if req.StudyID <= 0 || req.DeploymentID <= 0 {
		return Result{}, fmt.Errorf("%w: study_id and deployment_id are required", ErrInvalidRequest)
	}
	if actor.ID == "" {
		return Result{}, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	defer func() {
		metrics.PipelineResults.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	p, err := l.create(ctx, actor, req)
	if err != nil {
		return Result{}, &StageError{Stage: StageCreate, Err: err}
	}

	ctx = logger.WithAttrs(ctx, "passport_id", p.ID, "study_id", p.StudyID)
	log := logger.From(ctx)
	log.Info("passport created", "deployment_id", p.DeploymentID, "created_by", p.CreatedBy)

	scope := logbook.Scope{StudyID: p.StudyID, DeploymentID: p.DeploymentID}
	if err := l.stage(ctx, StageCompile, func() error { return l.books.Compile(ctx, p.ID, scope) }); err != nil {
		return Result{}, l.fail(ctx, p, StageCompile, err)
	}
	p = l.advance(ctx, p, StatusBookCompiled)

	var unsigned []byte
	err = l.stage(ctx, StageRender, func() error {
		var rerr error
		unsigned, rerr = l.render(ctx, p, req)
		return rerr
	})
	if err != nil {
		return Result{}, l.fail(ctx, p, StageRender, err)
	}
	p = l.advance(ctx, p, StatusRendered)

	var signed []byte
	err = l.stage(ctx, StageSeal, func() error {
		var serr error
		signed, serr = l.sealer.Sign(ctx, unsigned)
		return serr
	})
	if err != nil {
		return Result{}, l.fail(ctx, p, StageSeal, err)
	}

	sum := sha256.Sum256(signed)
	p.DocumentDigest = hex.EncodeToString(sum[:])
	p.Status = StatusSealed
	p.FailureReason = ""
	if err := l.repo.UpdateStatus(ctx, p.ID, StatusSealed, "", p.DocumentDigest); err != nil {
		return Result{}, l.fail(ctx, p, StageSeal, fmt.Errorf("store digest: %w", err))
	}

	log.Info("passport sealed", "document_digest", p.DocumentDigest, "bytes", len(signed))
	l.recordEvent(ctx, actor, audit.ActionCreate, p, p, "Passport sealed")
	return Result{Passport: p, Document: signed}, nil
}

func (l *Lifecycle) create(ctx context.Context, actor Actor, req CreateRequest) (Passport, error) {
	now := l.clock().UTC()
	approvedBy, approvedAt, err := l.approval.Approve(ctx, actor, now)
	if err != nil {
		return Passport{}, fmt.Errorf("approval: %w", err)
	}
	if approvedAt.Before(now) {
		return Passport{}, fmt.Errorf("approval at %s precedes creation at %s", approvedAt, now)
	}
	return l.repo.Create(ctx, Passport{
		StudyID:      req.StudyID,
		DeploymentID: req.DeploymentID,
		CreatedAt:    now,
		CreatedBy:    actor.ID,
		ApprovedAt:   approvedAt.UTC(),
		ApprovedBy:   approvedBy,
		Status:       StatusCreated,
	})
}

func (l *Lifecycle) render(ctx context.Context, p Passport, req CreateRequest) ([]byte, error) {
	entries, err := l.books.FindByPassportID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	html, err := l.view.HTML(header(p), entries)
	if err != nil {
		return nil, err
	}
	return l.renderer.Render(ctx, render.Request{
		HTML:      html,
		BaseURL:   req.BaseURL,
		Width:     req.Width,
		Height:    req.Height,
		Landscape: req.Landscape,
	})
}

func (l *Lifecycle) stage(ctx context.Context, s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StageDuration.WithLabelValues(string(s), metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err == nil {
		logger.From(ctx).Debug("passport stage done", "stage", string(s), "duration_ms", time.Since(start).Milliseconds())
	}
	return err
}

// advance records progress. Losing a progress marker does not stop the pipeline.
func (l *Lifecycle) advance(ctx context.Context, p Passport, s Status) Passport {
	if err := l.repo.UpdateStatus(ctx, p.ID, s, "", ""); err != nil {
		logger.From(ctx).Warn("passport status update failed", "status", string(s), "err", err)
	}
	p.Status = s
	return p
}

func (l *Lifecycle) fail(ctx context.Context, p Passport, s Stage, cause error) error {
	serr := &StageError{Stage: s, PassportID: p.ID, Err: cause}
	logger.From(ctx).Error("passport pipeline failed", "stage", string(s), "err", cause)

	// The caller's context may be the reason we failed; the failure must still be recorded.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.repo.UpdateStatus(recCtx, p.ID, StatusFailed, cause.Error(), ""); err != nil {
		logger.From(ctx).Error("passport failure not recorded", "err", err)
	}
	return serr
}

func header(p Passport) bookview.Header {
	return bookview.Header{
		ID:           p.ID,
		StudyID:      p.StudyID,
		DeploymentID: p.DeploymentID,
		CreatedAt:    p.CreatedAt,
		CreatedBy:    p.CreatedBy,
		ApprovedAt:   p.ApprovedAt,
		ApprovedBy:   p.ApprovedBy,
	}
}

// Recompile adds events recorded since the last compile. Only failed passports accept it;
// passports still in the pipeline or already sealed return ErrBookClosed.
func (l *Lifecycle) Recompile(ctx context.Context, passportID, studyID int64) error {
	p, err := l.repo.Get(ctx, passportID)
	if err != nil {
		return err
	}
	// Failed is terminal, so this check cannot race a running Create.
	if p.Status != StatusFailed {
		return ErrBookClosed
	}
	if studyID != 0 && studyID != p.StudyID {
		return fmt.Errorf("%w: passport %d belongs to study %d", ErrInvalidRequest, p.ID, p.StudyID)
	}
	return l.books.Compile(ctx, p.ID, logbook.Scope{StudyID: p.StudyID, DeploymentID: p.DeploymentID})
}

func (l *Lifecycle) Get(ctx context.Context, id int64) (Passport, error) {
	return l.repo.Get(ctx, id)
}

func (l *Lifecycle) ListByStudy(ctx context.Context, studyID int64) ([]Passport, error) {
	if studyID <= 0 {
		return nil, fmt.Errorf("%w: study_id is required", ErrInvalidRequest)
	}
	return l.repo.ListByStudy(ctx, studyID)
}

// Delete removes a passport and its book. Audit logs are never touched.
func (l *Lifecycle) Delete(ctx context.Context, actor Actor, id int64) error {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	existed, err := l.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if err := l.books.Drop(ctx, id); err != nil {
		return err
	}
	logger.From(ctx).Info("passport deleted", "passport_id", id)
	l.recordEvent(ctx, actor, audit.ActionDelete, p, nil, "Passport deleted")
	return nil
}

// passportRelation is the affected relation of passport audit events.
const passportRelation = "passport"

func (l *Lifecycle) recordEvent(ctx context.Context, actor Actor, action audit.ActionType, p Passport, entity any, desc string) {
	if l.auditor == nil {
		return
	}
	l.auditor.RecordBestEffort(ctx, audit.Change{
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		StudyID:     p.StudyID,
		Action:      action,
		Relation:    passportRelation,
		RecordID:    strconv.FormatInt(p.ID, 10),
		Entity:      entity,
		Description: desc,
	})
}

// Book returns the compiled book of an existing passport.
func (l *Lifecycle) Book(ctx context.Context, passportID int64) ([]logbook.Entry, error) {
	if _, err := l.repo.Get(ctx, passportID); err != nil {
		return nil, err
	}
	return l.books.FindByPassportID(ctx, passportID)
}

// Evidence returns an explicit subset of audit logs.
func (l *Lifecycle) Evidence(ctx context.Context, ids []string) ([]audit.AuditLog, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one audit log id is required", ErrInvalidRequest)
	}
	return l.books.FindByIDs(ctx, ids)
}

// IsInfrastructure reports whether err came from the render engine or the signing toolkit
// rather than from the request or the stores.
func IsInfrastructure(err error) bool {
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Stage == StageRender || se.Stage == StageSeal
}
