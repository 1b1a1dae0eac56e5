// Command server starts the gif API HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gif-api/internal/api"
	"gif-api/internal/auth"
	"gif-api/internal/config"
	"gif-api/internal/database"
	"gif-api/internal/observability/logging"
	"gif-api/internal/observability/metrics"
	"gif-api/internal/server"
	"gif-api/internal/serverutil"
	"gif-api/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	recorder := metrics.Default()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("failed to open datastore", "driver", cfg.Storage.Driver, "error", err)
		return err
	}
	logger.Info("datastore ready", "driver", cfg.Storage.Driver, "session_store", cfg.Session.Store)

	admin := auth.AdminCredentials{Password: cfg.Admin.Password, PasswordHash: cfg.Admin.PasswordHash}
	if !admin.Configured() {
		logger.Warn("admin password is not configured; login will fail until GIFAPI_ADMIN_PASSWORD or GIFAPI_ADMIN_PASSWORD_HASH is set")
	}

	sessions := auth.NewSessionManager(cfg.Session.TTL,
		auth.WithStore(backend.sessions),
		auth.WithLogger(logging.WithComponent(logger, "auth")),
	)
	handler := api.NewHandler(backend.store, sessions, admin)
	handler.Metrics = recorder
	handler.Logger = logging.WithComponent(logger, "api")

	srv, err := server.New(handler, serverConfig(cfg, logger, recorder))
	if err != nil {
		_ = backend.Close(context.Background())
		logger.Error("failed to initialise server", "error", err)
		return err
	}

	runErr := serverutil.Run(ctx, serverutil.Config{
		Server:          srv.HTTPServer(),
		TLS:             serverutil.TLSConfig{CertFile: cfg.TLS.CertFile, KeyFile: cfg.TLS.KeyFile},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
		Workers: []serverutil.Worker{
			sessionPurgeWorker(logging.WithComponent(logger, "session-purger"), sessions, cfg.Session.PurgeInterval, recorder),
		},
		OnShutdown: func(ctx context.Context) error {
			return errors.Join(srv.Close(), backend.Close(ctx))
		},
	})
	if runErr != nil {
		logger.Error("server stopped with error", "error", runErr)
		return runErr
	}
	logger.Info("server stopped")
	return nil
}

func serverConfig(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) server.Config {
	return server.Config{
		Addr: cfg.Addr,
		TLS:  server.TLSConfig{CertFile: cfg.TLS.CertFile, KeyFile: cfg.TLS.KeyFile},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     cfg.RateLimit.GlobalRPS,
			GlobalBurst:   cfg.RateLimit.GlobalBurst,
			LoginLimit:    cfg.RateLimit.LoginLimit,
			LoginWindow:   cfg.RateLimit.LoginWindow,
			RedisAddr:     cfg.RateLimit.RedisAddr,
			RedisPassword: cfg.RateLimit.RedisPassword,
			RedisDB:       cfg.RateLimit.RedisDB,
			RedisTimeout:  cfg.RateLimit.RedisTimeout,
		},
		CORS:              server.CORSConfig{AllowedOrigins: cfg.CORS.Origins},
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            logger,
		Metrics:           recorder,
	}
}

// backend bundles the record store with the session store sharing its
// connection.
type backend struct {
	store    storage.Repository
	sessions auth.SessionStore
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	var b backend
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.store = storage.NewSQLiteRepository(db)
		if cfg.Session.Store == config.DriverSQLite {
			b.sessions = auth.NewSQLiteSessionStore(db)
		}
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, database.NewPostgresConfig(
			cfg.Storage.PostgresDSN,
			database.WithPostgresPoolLimits(cfg.Storage.PostgresMaxConns, 0),
			database.WithPostgresApplicationName("gif-api"),
		))
		if err != nil {
			return nil, err
		}
		b.store = storage.NewPostgresRepository(pool)
		if cfg.Session.Store == config.DriverPostgres {
			b.sessions = auth.NewPostgresSessionStore(pool)
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if b.sessions == nil {
		b.sessions = auth.NewMemorySessionStore()
	}
	return &b, nil
}

// Close releases the shared connection. Session stores never own it.
func (b *backend) Close(ctx context.Context) error {
	if b == nil || b.store == nil {
		return nil
	}
	if err := b.store.Close(ctx); err != nil {
		return fmt.Errorf("close datastore: %w", err)
	}
	return nil
}
