package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/employee"
	"staffbook/internal/domain/export"
	"staffbook/internal/domain/listing"
	"staffbook/internal/domain/settings"
	"staffbook/internal/platform/cache"
	"staffbook/internal/platform/config"
	"staffbook/internal/platform/db"
	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/docstore/memstore"
	"staffbook/internal/platform/docstore/pgstore"
	"staffbook/internal/platform/docstore/sqlitestore"
	"staffbook/internal/platform/jobs"
	"staffbook/internal/platform/logger"
	"staffbook/internal/platform/metrics"
	"staffbook/internal/transport/http/api"
	authhandler "staffbook/internal/transport/http/handlers/auth"
	employeeshandler "staffbook/internal/transport/http/handlers/employees"
	selectionhandler "staffbook/internal/transport/http/handlers/selection"
	settingshandler "staffbook/internal/transport/http/handlers/settings"
	streamhandler "staffbook/internal/transport/http/handlers/stream"
	"staffbook/internal/transport/http/middleware"
)

const sessionCleanupInterval = time.Hour

type App struct {
	Config   config.Config
	Store    *docstore.Store
	Gateway  *employee.Gateway
	Auth     *auth.Service
	Settings *settings.Service
	Views    *listing.Registry
	Metrics  *metrics.Collector
	Jobs     *jobs.Service
	Router   http.Handler

	cache *cache.Redis
}

// New opens the configured store, seeds the bootstrap admin and dropdown
// options, and builds the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Store:   docstore.New(backend),
		Metrics: metrics.New(),
		Views:   listing.NewRegistry(cfg.PageSize),
	}
	app.Settings = settings.NewService(app.Store)
	app.Gateway = employee.NewGateway(app.Store, app.Settings)
	app.Auth = auth.NewService(auth.NewStore(app.Store), cfg.JWTSecret, cfg.TokenTTL)

	if err := app.seed(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	var viewCache listing.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ViewCacheTTL)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		app.cache = redisCache
		viewCache = cache.Observed{Next: redisCache, Observe: app.Metrics.ViewCache}
	}

	app.Jobs = jobs.New(app.Metrics,
		jobs.RecycleBinRetention(app.Gateway, cfg.RecycleBinRetention, cfg.RetentionInterval, time.Now),
		jobs.SessionCleanup(app.Auth, app.Views, cfg.SessionIdleTimeout, sessionCleanupInterval, time.Now),
	)
	app.Router = app.routes(listing.NewViewer(app.Gateway, viewCache))
	return app, nil
}

func openBackend(ctx context.Context, cfg config.Config) (docstore.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		b, err := pgstore.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns:        int32(cfg.DBMaxConns),
			ConnectAttempts: cfg.DBConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		return b, nil
	case config.DriverSQLite:
		b, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return b, nil
	case config.DriverMemory, "":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func (a *App) seed(ctx context.Context) error {
	if a.Config.SeedAdminEmail != "" {
		id, created, err := a.Auth.EnsureAccount(ctx, a.Config.SeedAdminEmail, a.Config.SeedAdminPassword, auth.RoleAdmin)
		if err != nil {
			return fmt.Errorf("seed admin failed: %w", err)
		}
		if created {
			logger.From(ctx).Info().Str("userId", id).Msg("bootstrap admin created")
		}
	}
	if a.Config.SettingsSeedFile != "" {
		seed, err := settings.LoadSeedFile(a.Config.SettingsSeedFile)
		if err != nil {
			return fmt.Errorf("settings seed failed: %w", err)
		}
		added, err := a.Settings.Seed(ctx, seed)
		if err != nil {
			return fmt.Errorf("settings seed failed: %w", err)
		}
		logger.From(ctx).Info().Int("added", added).Msg("settings options seeded")
	}
	return nil
}

func (a *App) routes(viewer *listing.Viewer) http.Handler {
	cfg := a.Config
	perms := auth.Permissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(a.Auth))
	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if a.cache != nil {
		limiter = middleware.CounterLimiter{Counter: a.cache}
	}
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithLimiter(limiter)))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, middleware.WithLimiter(limiter)))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if a.cache != nil {
			if err := a.cache.Ping(ctx); err != nil {
				http.Error(w, "cache not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(a.Auth, a.Views).RegisterRoutes(r)

		employees := &employeeshandler.Handler{
			Gateway:  a.Gateway,
			Viewer:   viewer,
			Views:    a.Views,
			Exporter: export.New(cfg.PDFFontPath),
			Perms:    perms,
			Metrics:  a.Metrics,
			PageSize: cfg.PageSize,
		}
		employees.RegisterRoutes(r)

		settingshandler.NewHandler(a.Settings, perms).RegisterRoutes(r)
		selectionhandler.NewHandler(a.Views, a.Gateway, perms).RegisterRoutes(r)
		streamhandler.NewHandler(a.Gateway, perms, a.Metrics).RegisterRoutes(r)
	})

	return router
}

// Run serves HTTP and runs background jobs until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	// Open event streams would otherwise hold Shutdown until its deadline.
	srv.RegisterOnShutdown(a.Store.CloseSubscriptions)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.From(ctx).Info().Str("addr", a.Config.Addr).Str("store", a.Config.StoreDriver).Msg("staffbook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.Jobs.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
