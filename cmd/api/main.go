package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passport-platform/internal/audit"
	"passport-platform/internal/auth"
	"passport-platform/internal/bookview"
	"passport-platform/internal/config"
	"passport-platform/internal/db"
	"passport-platform/internal/httpapi"
	"passport-platform/internal/logbook"
	"passport-platform/internal/passport"
	"passport-platform/internal/render"
	"passport-platform/internal/seal"
	"passport-platform/pkg/logger"
	"passport-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// renderSlotsKey is the Redis counter shared by every replica's render limiter.
const renderSlotsKey = "passport:render:slots"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}

	sqlDB, err := utils.OpenPostgres(ctx, utils.DriverPgx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, log, nil); err != nil {
		return err
	}

	var limiter render.Limiter = render.NewLocalLimiter(cfg.PDF.ConcurrentRenders)
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = render.NewRedisLimiter(rdb, renderSlotsKey, cfg.PDF.ConcurrentRenders, cfg.PDF.RenderTimeout)
		log.Info("render limiter shared through redis", "slots", cfg.PDF.ConcurrentRenders)
	}

	renderer := render.NewChromeRenderer(render.ChromeOptions{
		ExecPath: cfg.PDF.ChromePath,
		Layout: render.Layout{
			ViewportWidth:     cfg.PDF.ViewportWidth,
			ViewportHeight:    cfg.PDF.ViewportHeight,
			DeviceScaleFactor: cfg.PDF.DeviceScaleFactor,
		},
		Timeout: cfg.PDF.RenderTimeout,
		Limiter: limiter,
	})

	sealer := seal.NewSealer(seal.IdentityFromConfig(cfg.Signing))
	// Fail at startup rather than on the first passport when the container is unusable.
	if _, err := sealer.Certificate(); err != nil {
		return err
	}

	view, err := bookview.New()
	if err != nil {
		return err
	}

	auditRepo := audit.NewPostgresRepo(sqlDB)
	lifecycle := passport.NewLifecycle(passport.Deps{
		Repo:     passport.NewPostgresRepo(sqlDB),
		Books:    logbook.NewCompiler(auditRepo, logbook.NewPostgresStore(sqlDB)),
		View:     view,
		Renderer: renderer,
		Sealer:   sealer,
		Auditor:  audit.NewRecorder(auditRepo),
	})

	r := newRouter(cfg, log, sqlDB, httpapi.Handlers{
		Passports:      lifecycle,
		Signer:         sealer,
		DefaultBaseURL: cfg.PDF.BaseURL,
	}, httpapi.RequireQualityAssurance(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A passport may wait for a render slot, render twice and then sign.
		WriteTimeout: 2*cfg.PDF.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
