package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"passport-platform/internal/auth"
	"passport-platform/internal/metrics"
	"passport-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets common security response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// MaxBodySize limits request bodies. Uploaded PDFs for verification are the largest input.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// Prometheus records request duration by route pattern.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// RequireQualityAssurance is the guard for every passport route: a verified access token
// carrying the QA role (super_admin passes too).
func RequireQualityAssurance(m *auth.Manager) []gin.HandlerFunc {
	return []gin.HandlerFunc{auth.RequireAccessToken(m), rbac.RequireAnyRole(rbac.RoleQualityAssurance)}
}
