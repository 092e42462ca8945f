package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/app"
	"github.com/kailas-cloud/docsearch/internal/config"
	logpkg "github.com/kailas-cloud/docsearch/internal/logger"
	"github.com/kailas-cloud/docsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/docsearch/internal/transport/chi"
	"github.com/kailas-cloud/docsearch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "docsearch:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "docsearch",
		Usage:   "Multi-tenant full-text search over schemaless documents",
		Version: version.Get().String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Configuration environment (reads config/<env>.yaml)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:  "dotenv",
				Usage: "Optional .env file loaded before the configuration",
				Value: ".env",
			},
		},
		Before: loadDotenv,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "migrate",
						Usage: "Apply schema migrations before serving",
						Value: true,
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Apply or revert the backend schema and print the result",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "down",
						Usage: "Revert the schema instead of applying it",
					},
				},
			},
		},
	}
}

// loadDotenv loads the .env file when present. Variables already set win.
func loadDotenv(c *cli.Context) error {
	path := c.String("dotenv")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// bootstrap loads configuration and builds the logger for a command.
func bootstrap(c *cli.Context) (*config.Config, *zap.Logger, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return &cfg, logger, nil
}

func serveCommand(c *cli.Context) error {
	cfg, logger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting docsearch API server",
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.String("env", c.String("env")),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterSearchMetrics()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Error closing backends", zap.Error(err))
		}
	}()
	logger.Info("Connected to database")

	if c.Bool("migrate") {
		if res := a.Documents.Migrate(ctx, false); !res.Success {
			return fmt.Errorf("migrate: %s", res.Error)
		}
	}

	server := chiTransport.NewServer(a.Documents, a.Bulk, a.Search, a.Health, logger).
		WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit).
		WithMaxBodyBytes(int64(cfg.HTTP.MaxBodyBytes)).
		WithBulkMetrics(metrics.BulkItemsTotal)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func migrateCommand(c *cli.Context) error {
	cfg, logger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := app.OpenStore(c.Context, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	res := store.RunMigrations(c.Context, c.Bool("down"))
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("print result: %w", err)
	}
	if !res.Success {
		return errors.New("migration failed")
	}
	return nil
}
