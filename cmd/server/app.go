package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/phrazzld/studyguide-api/internal/config"
	"github.com/phrazzld/studyguide-api/internal/extract"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/platform/cache"
	"github.com/phrazzld/studyguide-api/internal/platform/filestore"
	"github.com/phrazzld/studyguide-api/internal/platform/firestore"
	"github.com/phrazzld/studyguide-api/internal/platform/gcs"
	"github.com/phrazzld/studyguide-api/internal/platform/gemini"
	"github.com/phrazzld/studyguide-api/internal/platform/metrics"
	"github.com/phrazzld/studyguide-api/internal/platform/postgres"
	"github.com/phrazzld/studyguide-api/internal/service"
	"github.com/phrazzld/studyguide-api/internal/service/auth"
	"github.com/phrazzld/studyguide-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Backing clients, set only for the configured backends
	db        *sql.DB
	firestore *gcfirestore.Client
	redis     *redis.Client
	archive   *gcs.Archive

	guideStore   store.GuideStore
	generator    generation.Generator
	guideService service.GuideService

	// jwtService is nil when auth.jwt_secret is unset.
	jwtService auth.JWTService
}

// appOption overrides a dependency, used by tests to avoid live services.
type appOption func(*application)

// withGenerator replaces the Gemini generator.
func withGenerator(g generation.Generator) appOption {
	return func(app *application) { app.generator = g }
}

// newApplication creates a new application instance with all dependencies initialized.
// Resources opened before a failure are released before the error is returned.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: metrics.NewRegistry(),
	}
	app.metrics = metrics.New(app.registry)
	for _, opt := range opts {
		opt(app)
	}

	if err := app.init(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// init wires the stores, generator and services from the configuration.
func (app *application) init(ctx context.Context) error {
	cfg := app.config
	logger := app.logger

	guideStore, err := app.openGuideStore(ctx)
	if err != nil {
		return err
	}
	app.guideStore = guideStore

	if cfg.Cache.RedisURL != "" {
		app.redis, err = cache.NewClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		app.guideStore = cache.NewGuideStore(app.guideStore, app.redis, ttl, logger)
		logger.Info("guide cache enabled", "ttl", ttl.String())
	}

	if app.generator == nil {
		app.generator, err = gemini.NewGenerator(logger, cfg.LLM, gemini.WithMetrics(app.metrics))
		if err != nil {
			return fmt.Errorf("failed to initialize LLM generator: %w", err)
		}
	}

	serviceOpts := []service.Option{service.WithMediaTranscription(cfg.LLM.TranscribeMedia)}
	if cfg.Archive.Bucket != "" {
		app.archive, err = gcs.NewArchive(ctx, cfg.Archive.Bucket, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize source archive: %w", err)
		}
		serviceOpts = append(serviceOpts, service.WithArchive(app.archive))
		logger.Info("source archive enabled", "bucket", cfg.Archive.Bucket)
	}

	app.guideService, err = service.NewGuideService(
		app.guideStore,
		app.generator,
		extract.NewExtractor(),
		logger,
		serviceOpts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create guide service: %w", err)
	}

	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("bearer token identity enabled", "required", cfg.Auth.Required)
	}
	return nil
}

// openGuideStore connects the configured guide store backend.
func (app *application) openGuideStore(ctx context.Context) (store.GuideStore, error) {
	cfg := app.config
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.logger.Info("database connection established")
		return postgres.NewPostgresGuideStore(db, app.logger), nil

	case config.StoreBackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, err
		}
		app.firestore = client
		return firestore.NewGuideStore(client, cfg.Firestore.Collection, app.logger), nil

	case config.StoreBackendFile, "":
		s, err := filestore.NewGuideStore(afero.NewOsFs(), cfg.Store.Dir, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.archive != nil {
		if err := app.archive.Close(); err != nil {
			app.logger.Error("error closing archive client", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if app.firestore != nil {
		if err := app.firestore.Close(); err != nil {
			app.logger.Error("error closing firestore client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
