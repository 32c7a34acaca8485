package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"techtrack/internal/config"
	"techtrack/internal/database"
	"techtrack/internal/event"
	"techtrack/internal/handler"
	"techtrack/internal/metrics"
	"techtrack/internal/middleware"
	"techtrack/internal/repository"
	"techtrack/internal/router"
	"techtrack/internal/security"
	"techtrack/internal/service"
	"techtrack/internal/websocket"
)

type App struct {
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()
}

type stores struct {
	users  service.UserDirectory
	audit  service.AuditStore
	health interface {
		Health(ctx context.Context) error
	}
	close func()
}

// New wires the application from cfg: it opens the store, applies the
// schema, seeds the first superuser and starts the event consumers.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cleanupFuncs: []func(){st.close}}
	if err := a.build(ctx, cfg, st); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, st stores) error {
	secret := cfg.SecretKey
	if secret == "" {
		generated, err := security.RandomSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret key: %w", err)
		}
		secret = generated
		slog.Warn("SECRET_KEY is not set; using a random per-process key, tokens will not survive a restart")
	}

	tokens, err := security.NewTokenIssuer([]byte(secret), cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	bus := event.NewBus()
	appMetrics := metrics.New()

	consumersCtx, stopConsumers := context.WithCancel(context.Background())
	auditService := service.NewAuditService(st.audit, bus)
	auditDone := auditService.Start(consumersCtx)
	metricsDone := appMetrics.Start(consumersCtx, bus)
	hub := websocket.NewHub(bus)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(consumersCtx)
	}()
	a.cleanupFuncs = append([]func(){func() {
		stopConsumers()
		<-auditDone
		<-metricsDone
		<-hubDone
	}}, a.cleanupFuncs...)

	authService, err := service.NewAuthService(st.users, hasher, tokens, bus)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}
	userService := service.NewUserService(st.users, hasher, bus)

	if _, err := userService.EnsureFirstSuperuser(ctx, cfg.FirstSuperuser); err != nil {
		return fmt.Errorf("failed to bootstrap first superuser: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	a.handler = router.New(cfg, authMiddleware, appMetrics, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService, cfg.UsersOpenRegistration),
		Audit:    handler.NewAuditHandler(auditService),
		Health:   handler.NewHealthHandler(st.health),
		Docs:     handler.NewDocsHandler(),
		Metrics:  appMetrics.Handler(),
		Activity: hub.ServeWS,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return stores{
			users:  repository.NewGormUserRepository(db.Gorm),
			audit:  repository.NewGormAuditRepository(db.Gorm),
			health: db,
			close:  db.Close,
		}, nil
	default:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		slog.Info("database ready")

		return stores{
			users:  repository.NewUserRepository(db.Pool),
			audit:  repository.NewAuditRepository(db.Pool),
			health: db,
			close:  db.Close,
		}, nil
	}
}

// Handler exposes the routed handler so tests can serve it without a listener.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close stops the event consumers and releases the store.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
