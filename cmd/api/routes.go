package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"passport-platform/internal/config"
	"passport-platform/internal/httpapi"
	"passport-platform/pkg/logger"
	"passport-platform/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds uploads; signed passports sent to /verify are the largest bodies.
const maxBodySize = 32 << 20

// newRouter wires middleware and routes.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(cfg config.Config, log *slog.Logger, sqlDB *sql.DB, h httpapi.Handlers, guard []gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(httpapi.SecurityHeaders())
	r.Use(httpapi.MaxBodySize(maxBodySize))
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.App.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{"Content-Type", "Authorization", logger.HeaderRequestID},
			ExposeHeaders: []string{"X-Passport-Id", "X-Document-Digest", "X-Total-Count", "Content-Disposition"},
			MaxAge:        time.Hour,
		}))
	}
	r.Use(httpapi.Prometheus())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), sqlDB, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.Register(r, h, guard...)
	return r
}
