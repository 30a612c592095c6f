package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/blink/internal/blob"
	"github.com/MrSnakeDoc/blink/internal/config"
	"github.com/MrSnakeDoc/blink/internal/httpserver"
	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/logger"
	"github.com/MrSnakeDoc/blink/internal/redis"
	"github.com/MrSnakeDoc/blink/internal/scheduler"
	"github.com/MrSnakeDoc/blink/internal/store"
	"github.com/MrSnakeDoc/blink/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/blink/internal/store/redis"
	"github.com/MrSnakeDoc/blink/internal/store/selector"
	"github.com/MrSnakeDoc/blink/internal/store/sqlite"
	"github.com/MrSnakeDoc/blink/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	backends *selector.Provider
	reaper   *scheduler.Reaper
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	backends, err := selector.New(Factories(cfg, loggerClient), cfg.Backend, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to configure storage: %w", err)
	}

	blobs, err := blob.New(afero.NewOsFs(), cfg.UploadDir,
		blob.WithMaxBytes(int64(cfg.MaxUploadMB)<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}
	loggerClient.Info("blob store ready", logger.String("dir", cfg.UploadDir))

	// Reaper (optional, lazy expiry is enough for correctness)
	var reaper *scheduler.Reaper
	var sweepTrigger chan struct{}
	if cfg.ReapInterval > 0 {
		sweepTrigger = make(chan struct{}, 1)
		reaper = scheduler.NewReaper(backends, blobs, loggerClient, cfg.ReapInterval, sweepTrigger)
	} else {
		loggerClient.Info("reaper disabled, dead pastes are only removed when read")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		Backends:        backends,
		Blobs:           blobs,
		TestMode:        cfg.TestMode,
		PublicBaseURL:   cfg.PublicBaseURL,
		CreateRateLimit: cfg.CreateRateLimit,
		RequestTimeout:  cfg.RequestTimeout,
		UploadTimeout:   cfg.UploadTimeout,
		SweepTrigger:    sweepTrigger,
	}

	if cfg.TestMode {
		loggerClient.Warn("test mode enabled, X-Test-Now-Ms overrides the read clock")
	}

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   httpserver.New(cfg, loggerClient, d),
		backends: backends,
		reaper:   reaper,
	}, nil
}

// Factories builds the backend candidates from cfg. Redis is only a
// candidate when an address is configured.
func Factories(cfg *config.Config, log logger.Logger) selector.Factories {
	f := selector.Factories{
		SQLite: func(context.Context) (store.Backend, error) {
			if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
				}
			}
			return sqlite.Open(sqlite.Options{Path: cfg.SQLitePath})
		},
		Memory: func() store.Backend { return memory.New() },
	}

	if cfg.RedisAddr != "" {
		f.Redis = func(ctx context.Context) (store.Backend, error) {
			client, err := redis.Connect(ctx, redis.ConnectOptions{
				Addr:           cfg.RedisAddr,
				User:           cfg.RedisUser,
				Password:       cfg.RedisPassword,
				DB:             cfg.RedisDB,
				DialTimeout:    cfg.RedisDT,
				ReadTimeout:    cfg.RedisRT,
				WriteTimeout:   cfg.RedisWT,
				PoolSize:       cfg.RedisPoolSize,
				ConnectTimeout: cfg.RedisConnectTimeout,
				RetryInterval:  cfg.RedisRetryInterval,
				MaxWait:        cfg.RedisMaxWait,
				PingTimeout:    cfg.RedisPingTimeout,
			}, log)
			if err != nil {
				return nil, err
			}
			return redisstore.NewStore(client, redisstore.WithKeyGrace(cfg.RedisKeyGrace)), nil
		}
	}

	return f
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Blink v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Blink %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Select the backend now so the first request does not pay for it.
	backend := a.backends.Get(ctx)
	a.logger.Info("storage ready",
		logger.String("backend", backend.Name()),
		logger.Bool("healthy", backend.Health(ctx)))

	if a.reaper != nil {
		a.reaper.Start(ctx)
		a.logger.Info("reaper started",
			logger.Duration("interval", a.cfg.ReapInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	return multierr.Append(runErr, a.shutdown())
}

// shutdown stops every component, collecting all errors instead of
// stopping at the first.
func (a *App) shutdown() error {
	if a.reaper != nil {
		a.reaper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var err error
	if stopErr := a.server.Stop(shutdownCtx); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop server: %w", stopErr))
	}

	if closeErr := a.backends.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close storage: %w", closeErr))
	} else {
		a.logger.Info("✅ Storage closed cleanly")
	}

	// Sync commonly fails on stdout/stderr; not worth reporting.
	_ = a.logger.Sync()

	if err == nil {
		a.logger.Info("✅ Blink stopped cleanly")
	}
	return err
}
