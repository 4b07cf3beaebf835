package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/youssefsiam38/ctxoffload"
	"github.com/youssefsiam38/ctxoffload/driver"
	"github.com/youssefsiam38/ctxoffload/driver/databasesql"
	"github.com/youssefsiam38/ctxoffload/driver/pgxv5"
	"github.com/youssefsiam38/ctxoffload/hooks"
	"github.com/youssefsiam38/ctxoffload/internal/config"
	"github.com/youssefsiam38/ctxoffload/storage"
	"google.golang.org/api/option"
)

// app holds what a command needs: the loaded config, a logger, the blob
// backend and the client built on top of them
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend storage.Backend
	client  *ctxoffload.Client
	closers []func() error
}

// newApp builds an app from cfg. Logs go to logOut.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, verbose bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg.Log, logOut),
	}

	backend, closer, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.backend = backend
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	registry := hooks.NewRegistry()
	if verbose {
		hooks.NewVerboseLoggingHooks(log.New(logOut, "", log.LstdFlags)).Register(registry)
	}

	clientCfg := ctxoffload.Config{
		StorageURI:      cfg.Storage.URI,
		BaseDir:         cfg.Storage.BaseDir,
		BlobBackend:     backend,
		Boundary:        cfg.Boundary(),
		ReaderToolNames: cfg.Compaction.ReaderToolNames,
		Logger:          a.logger,
		Hooks:           registry,
		ToolTimeout:     cfg.ToolTimeout(),
		Model:           cfg.Anthropic.Model,
	}
	if cfg.Anthropic.APIKey != "" {
		client := anthropic.NewClient(anthropicoption.WithAPIKey(cfg.Anthropic.APIKey))
		clientCfg.AnthropicClient = &client
	}

	client, err := ctxoffload.New(clientCfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	a.client = client

	a.logger.Debug("client ready",
		"storage", client.Adapter().Identity(),
		"backend", cfg.Storage.Backend,
		"readers", strings.Join(client.ReaderToolNames(), ","))

	return a, nil
}

// Close releases database connections held by the backend
func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// newLogger creates a slog logger for the configured level and format
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newBackend creates the blob backend named by the config. The returned
// closer may be nil.
func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendNone, "":
		return nil, nil, nil
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil, nil
	case config.BackendPostgres:
		d, closer, err := openDriver(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLBackend(d, cfg.Database.Table), closer, nil
	case config.BackendGCS:
		var opts []option.ClientOption
		if cfg.GCS.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		}
		backend, err := storage.NewGCSBackend(ctx, cfg.GCS.Bucket, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gcs backend: %w", err)
		}
		return backend, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// openDriver connects to PostgreSQL through pgx or database/sql
func openDriver(ctx context.Context, cfg config.DatabaseConfig) (driver.Driver, func() error, error) {
	switch cfg.Driver {
	case config.DriverDatabaseSQL:
		d, err := databasesql.Open(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return d, d.Close, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return pgxv5.New(pool), func() error {
			pool.Close()
			return nil
		}, nil
	}
}
