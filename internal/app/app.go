package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/config"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/secret"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/storage"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/templateclient"
)

// App owns the storage handles and services shared by the CLI commands and
// the MCP server.
type App struct {
	cfg    config.Config
	db     *storage.DB
	store  domain.TemplateStore
	logger *slog.Logger

	Secrets   secret.SecretStore
	Events    *Relay
	Canvas    *service.CanvasService
	Host      *service.LocalCanvas
	Uploader  *service.MediaUploader
	Templates *service.TemplateService
	Watcher   *service.ImportWatcher // nil unless watch is enabled
}

// Option adjusts Open; used by tests.
type Option func(*App)

// WithSecrets replaces the OS keyring.
func WithSecrets(s secret.SecretStore) Option { return func(a *App) { a.Secrets = s } }

// Open opens the local database and the configured template store and wires
// the services.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  log.WithComponent("app"),
		Secrets: secret.NewKeyringStore(),
	}
	for _, o := range opts {
		o(a)
	}
	a.Events = NewRelay(service.LogEmitter{Logger: log.WithComponent("events")})

	db, err := storage.New(filepath.Join(cfg.DataDir, "canvaskit.db"), cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	store, err := a.openTemplateStore(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.store = store

	media := storage.NewMediaStore(db)
	a.Canvas = service.NewCanvasService(storage.NewCanvasStore(db), media, "", a.Events)
	if _, err := a.Canvas.EnsureDesign(); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("ensure design: %w", err)
	}
	a.Host = service.NewLocalCanvas(a.Canvas)
	a.Uploader = service.NewMediaUploader(media, db.DataDir(), nil)
	a.Templates = service.NewTemplateService(store, a.Host, a.Uploader, a.Events,
		generator.WithPacing(cfg.Pacing.Pacing()))

	if cfg.Watch.Enabled && cfg.Watch.Dir != "" {
		a.Watcher = service.NewImportWatcher(cfg.Watch.Dir, a.Templates)
	}

	a.logger.Info("opened", "data_dir", cfg.DataDir, "store", cfg.Store.Driver)
	return a, nil
}

func (a *App) openTemplateStore(ctx context.Context) (domain.TemplateStore, error) {
	sc := a.cfg.Store
	switch strings.ToLower(sc.Driver) {
	case "", "sqlite":
		return storage.NewSQLiteTemplateStore(a.db)
	case "postgres", "mysql":
		if sc.DSN == "" {
			return nil, fmt.Errorf("store driver %s needs a dsn", sc.Driver)
		}
		return storage.OpenSQLTemplateStore(ctx, sc.Driver, sc.DSN)
	case "mongo":
		if sc.DSN == "" {
			return nil, errors.New("store driver mongo needs a dsn")
		}
		dbName := sc.MongoDatabase
		if dbName == "" {
			dbName = "canvaskit"
		}
		return storage.OpenMongoTemplateStore(ctx, sc.DSN, dbName)
	case "http":
		return templateclient.New(sc.BaseURL, sc.Timeout(),
			templateclient.WithTokenSource(secret.NewTokenProvider(a.Secrets)),
			templateclient.WithRateLimit(sc.RequestsPerSecond),
			templateclient.WithLogger(log.WithComponent("templateclient")),
		)
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// Close waits for running generations, then releases the stores.
func (a *App) Close(ctx context.Context) error {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	if a.Templates != nil {
		if err := a.Templates.WaitIdle(ctx); err != nil {
			a.logger.Warn("generations still running at shutdown", "err", err)
		}
	}
	var errs []error
	if c, ok := a.store.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
