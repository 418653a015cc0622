package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/velvetthemes/licensing/internal/assets"
	"github.com/velvetthemes/licensing/internal/config"
	"github.com/velvetthemes/licensing/internal/infrastructure"
	"github.com/velvetthemes/licensing/internal/license"
	customMiddleware "github.com/velvetthemes/licensing/internal/middleware"
	transport "github.com/velvetthemes/licensing/internal/transport/http"
)

const AppName = "velvet-licensing"

// Application wires the license engine, the asset gate and the HTTP surface
// together and owns the server lifecycle.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders

	Store    *license.FileStore
	Engine   *license.Engine
	Gate     *assets.Gate
	Sessions *customMiddleware.SessionManager

	licenseHandler *transport.LicenseHandler
	webhookHandler *transport.WebhookHandler
	assetHandler   *transport.AssetHandler
	adminHandler   *transport.AdminHandler
	healthHandler  *transport.HealthHandler
}

// NewApplication builds a fully wired application from the environment.
// A corrupt license snapshot is a startup failure: the process must not run
// against a table it cannot trust.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(transport.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize otel: %w", err)
	}

	if dir := filepath.Dir(cfg.Paths.LicenseFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := license.OpenFileStore(cfg.Paths.LicenseFile)
	if err != nil {
		return nil, fmt.Errorf("open license store: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Store:         store,
	}
	app.initializeServices()
	app.setupRouter()
	app.createServer()
	return app, nil
}

func (a *Application) initializeServices() {
	a.Engine = license.NewEngine(a.Store, a.Config.Server.BaseURL, a.Logger)
	a.Gate = assets.NewGate(a.Engine, a.Config.Paths.AssetFile, a.Logger)
	a.Sessions = customMiddleware.NewSessionManager(a.Config.Admin.SessionTTL, a.Logger)

	a.licenseHandler = transport.NewLicenseHandler(a.Engine, a.Logger)
	a.webhookHandler = transport.NewWebhookHandler(a.Engine, a.Logger)
	a.assetHandler = transport.NewAssetHandler(a.Gate, a.Logger)
	a.healthHandler = transport.NewHealthHandler(a.Engine, a.Store.CheckWritable)

	adminHandler, err := transport.NewAdminHandler(a.Engine, a.Sessions, a.Config, a.Logger)
	if err != nil {
		// Templates are embedded; a parse failure is a build defect.
		panic(fmt.Sprintf("admin templates: %v", err))
	}
	a.adminHandler = adminHandler
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	// Public endpoints consumed by themes running on storefronts.
	r.Get("/validate", a.licenseHandler.Validate)
	r.Get("/theme.css", a.assetHandler.ThemeCSS)
	r.Post("/webhook/orders/fulfilled", a.webhookHandler.OrderFulfilled)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", a.healthHandler.Health)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.Sessions.RequireAuth)
			r.Get("/licenses", a.adminHandler.ListLicenses)
			r.Get("/licenses/export", a.adminHandler.Export)
			r.Post("/licenses/{key}/revoke", a.adminHandler.Revoke)
			r.Post("/licenses/{key}/activate", a.adminHandler.Activate)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", a.adminHandler.LoginPage)
		r.Post("/login", a.adminHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(a.Sessions.RequireAuth)
			r.Get("/", a.adminHandler.Dashboard)
			r.Post("/logout", a.adminHandler.Logout)
		})
	})

	// Metrics stay outside the middleware chain.
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start launches the HTTP server. A listen failure cancels the run context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", AppName),
		slog.String("version", transport.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.Int("licenses", a.Engine.Count(ctx)),
		slog.Bool("admin_enabled", a.Config.AdminEnabled()))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "otel shutdown error", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
