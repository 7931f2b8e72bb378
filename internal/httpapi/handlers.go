package httpapi

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"strconv"

	"passport-platform/internal/audit"
	"passport-platform/internal/auth"
	"passport-platform/internal/logbook"
	"passport-platform/internal/passport"
	"passport-platform/internal/seal"
	"passport-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Passports is the part of passport.Lifecycle the HTTP layer calls.
type Passports interface {
	Create(ctx context.Context, actor passport.Actor, req passport.CreateRequest) (passport.Result, error)
	Get(ctx context.Context, id int64) (passport.Passport, error)
	ListByStudy(ctx context.Context, studyID int64) ([]passport.Passport, error)
	Delete(ctx context.Context, actor passport.Actor, id int64) error
	Book(ctx context.Context, passportID int64) ([]logbook.Entry, error)
	Recompile(ctx context.Context, passportID, studyID int64) error
	Evidence(ctx context.Context, ids []string) ([]audit.AuditLog, error)
}

// SignerCertificate yields the certificate sealed documents are expected to carry.
type SignerCertificate interface {
	Certificate() (*x509.Certificate, error)
}

const (
	headerPassportID     = "X-Passport-Id"
	headerDocumentDigest = "X-Document-Digest"
	headerTotalCount     = "X-Total-Count"
	contentTypePDF       = "application/pdf"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the lifecycle, return JSON or PDF bytes.
type Handlers struct {
	Passports Passports
	Signer    SignerCertificate
	// DefaultBaseURL resolves relative links in the book when the request names none.
	DefaultBaseURL string
}

// --- Passports ---

type createPassportRequest struct {
	StudyID      int64  `json:"study_id"`
	DeploymentID int64  `json:"deployment_id"`
	BaseURL      string `json:"base_url,omitempty"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
	Landscape    bool   `json:"landscape,omitempty"`
}

// CreatePassport seals a new passport and streams the signed PDF.
func (h Handlers) CreatePassport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req createPassportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !studyInScope(c, req.StudyID) {
		return
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = h.DefaultBaseURL
	}
	res, err := h.Passports.Create(c.Request.Context(), actor, passport.CreateRequest{
		StudyID:      req.StudyID,
		DeploymentID: req.DeploymentID,
		BaseURL:      baseURL,
		Width:        req.Width,
		Height:       req.Height,
		Landscape:    req.Landscape,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header(headerPassportID, strconv.FormatInt(res.Passport.ID, 10))
	c.Header(headerDocumentDigest, res.Passport.DocumentDigest)
	c.Header("Content-Disposition", `attachment; filename="passport-`+strconv.FormatInt(res.Passport.ID, 10)+`.pdf"`)
	c.Data(http.StatusOK, contentTypePDF, res.Document)
}

func (h Handlers) ListPassports(c *gin.Context) {
	studyID, err := strconv.ParseInt(c.Query("study_id"), 10, 64)
	if err != nil || studyID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "study_id required"})
		return
	}
	if !studyInScope(c, studyID) {
		return
	}
	list, err := h.Passports.ListByStudy(c.Request.Context(), studyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if list == nil {
		list = []passport.Passport{}
	}
	c.Header(headerTotalCount, strconv.Itoa(len(list)))
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetPassport(c *gin.Context) {
	id, ok := int64Param(c, "passport_id")
	if !ok {
		return
	}
	p, ok := h.passportInScope(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) DeletePassport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "passport_id")
	if !ok {
		return
	}
	if _, ok := h.passportInScope(c, id); !ok {
		return
	}
	if err := h.Passports.Delete(c.Request.Context(), actor, id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Signer string `json:"signer,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// VerifyPassport checks an uploaded PDF against the configured signing certificate.
func (h Handlers) VerifyPassport(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(body) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "pdf body required"})
		return
	}

	cert, err := h.Signer.Certificate()
	if err != nil {
		logger.FromGin(c).Error("signing certificate unavailable", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "signing identity unavailable"})
		return
	}

	v, err := seal.Verify(body, cert)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, verifyResponse{Valid: true, Signer: v.Signer.Subject.CommonName})
	case errors.Is(err, seal.ErrNoSignature), errors.Is(err, seal.ErrSignatureInvalid), errors.Is(err, seal.ErrUnexpectedSigner):
		c.JSON(http.StatusOK, verifyResponse{Valid: false, Reason: err.Error()})
	default:
		abortWithError(c, err)
	}
}

// --- Audit log book ---

func (h Handlers) GetBook(c *gin.Context) {
	id, ok := int64Param(c, "passport_id")
	if !ok {
		return
	}
	if _, ok := h.passportInScope(c, id); !ok {
		return
	}
	entries, err := h.Passports.Book(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []logbook.Entry{}
	}
	c.Header(headerTotalCount, strconv.Itoa(len(entries)))
	c.JSON(http.StatusOK, entries)
}

// RecompileBook links events recorded since the last compile into an unsealed passport's book.
func (h Handlers) RecompileBook(c *gin.Context) {
	passportID, err := strconv.ParseInt(c.Query("passport_id"), 10, 64)
	if err != nil || passportID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "passport_id required"})
		return
	}
	var studyID int64
	if raw := c.Query("study_id"); raw != "" {
		studyID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || studyID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid study_id"})
			return
		}
	}
	if _, ok := h.passportInScope(c, passportID); !ok {
		return
	}
	if err := h.Passports.Recompile(c.Request.Context(), passportID, studyID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"passport_id": passportID})
}

// AuditLogsByIDs returns an explicit subset of audit logs as evidence.
func (h Handlers) AuditLogsByIDs(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "expected a json array of audit log ids"})
		return
	}
	logs, err := h.Passports.Evidence(c.Request.Context(), ids)
	if err != nil {
		abortWithError(c, err)
		return
	}
	for _, l := range logs {
		if !studyInScope(c, l.StudyID) {
			return
		}
	}
	if logs == nil {
		logs = []audit.AuditLog{}
	}
	c.Header(headerTotalCount, strconv.Itoa(len(logs)))
	c.JSON(http.StatusOK, logs)
}

// --- helpers ---

func actorFrom(c *gin.Context) (passport.Actor, bool) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return passport.Actor{}, false
	}
	return passport.Actor{ID: id.UserID, Name: id.Name}, true
}

// studyInScope aborts with 403 when the caller's token is scoped to other studies.
func studyInScope(c *gin.Context, studyID int64) bool {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return false
	}
	if !id.CanAccessStudy(studyID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "study not in scope"})
		return false
	}
	return true
}

func (h Handlers) passportInScope(c *gin.Context, id int64) (passport.Passport, bool) {
	p, err := h.Passports.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return passport.Passport{}, false
	}
	if !studyInScope(c, p.StudyID) {
		return passport.Passport{}, false
	}
	return p, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// abortWithError maps domain errors to status codes. Internal detail is logged, not returned,
// except for request errors whose text is the caller's own input problem.
func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, passport.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, passport.ErrNotFound):
		return http.StatusNotFound, "passport not found"
	case errors.Is(err, passport.ErrBookClosed):
		return http.StatusConflict, "audit log book is closed"
	case passport.IsInfrastructure(err):
		var se *passport.StageError
		errors.As(err, &se)
		return http.StatusBadGateway, string(se.Stage) + " failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
