// Indexwatch serves the indexation dashboard: it tracks whether a set of urls
// are indexed by Google and Yandex.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/indexwatch/internal/api"
	"github.com/jdholdren/indexwatch/internal/checker"
	"github.com/jdholdren/indexwatch/internal/credential"
	"github.com/jdholdren/indexwatch/internal/database"
	"github.com/jdholdren/indexwatch/internal/logger"
	"github.com/jdholdren/indexwatch/internal/metrics"
	"github.com/jdholdren/indexwatch/internal/migrations"
	"github.com/jdholdren/indexwatch/internal/sync"
)

type config struct {
	Port           int    `env:"PORT, default=4444"`
	Database       string `env:"DATABASE, required"`
	DatabaseDriver string `env:"DATABASE_DRIVER, default=sqlite"` // sqlite or postgres

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`

	CheckAPIURL      string        `env:"CHECK_API_URL, default=https://arsenkin.ru/tools/blog/api-indexation"`
	CheckAPIKey      string        `env:"CHECK_API_KEY"`
	CheckConcurrency int           `env:"CHECK_CONCURRENCY, default=4"`
	CheckTimeout     time.Duration `env:"CHECK_TIMEOUT, default=30s"`

	CookieHashKey  string `env:"COOKIE_HASH_KEY"`
	CookieBlockKey string `env:"COOKIE_BLOCK_KEY"`
	HTTPSCookies   bool   `env:"HTTPS_COOKIES, default=false"`
	CorsOrigin     string `env:"CORS_ORIGIN, default=*"`

	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE, default=10"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE, default=100"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	l, err := logger.New(os.Stderr, cfg.LoggerFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("error creating logger: %s", err)
	}
	slog.SetDefault(l)

	// Start the application
	if err := runApp(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runApp(ctx context.Context, cfg config) error {
	slog.Info("running",
		"port", cfg.Port,
		"database_driver", cfg.DatabaseDriver,
		"check_concurrency", cfg.CheckConcurrency,
	)

	dbx, err := database.Open(cfg.DatabaseDriver, cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()

	// Retry until the store is reachable
	if err := retry.Do(ctx, retry.WithMaxDuration(time.Minute, retry.NewFibonacci(time.Second)), func(ctx context.Context) error {
		if err := dbx.PingContext(ctx); err != nil {
			slog.Warn("store not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("error connecting to store: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		repo  = database.New(dbx)
		check = checker.New(checker.Config{
			BaseURL:     cfg.CheckAPIURL,
			Concurrency: cfg.CheckConcurrency,
			Timeout:     cfg.CheckTimeout,
		}, m)
		// Cookie first, then the saved settings, then the environment
		creds = credential.Chain{
			credential.Context{},
			credential.Settings{Repo: repo},
			credential.Static(cfg.CheckAPIKey),
		}
		ctrl = sync.NewController(repo, check, creds, m)
	)

	hashKey, blockKey := []byte(cfg.CookieHashKey), []byte(cfg.CookieBlockKey)
	if len(hashKey) == 0 {
		// Cookies won't survive a restart
		slog.Warn("COOKIE_HASH_KEY not set, generating a random one")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		slog.Warn("COOKIE_BLOCK_KEY not set, generating a random one")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	s := api.NewServer(api.ServerConfig{
		Port:            cfg.Port,
		CookieHashKey:   hashKey,
		CookieBlockKey:  blockKey,
		HttpsCookies:    cfg.HTTPSCookies,
		CorsOrigin:      cfg.CorsOrigin,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}, ctrl, repo, m)

	var g run.Group
	g.Add(func() error {
		slog.Info("listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}
		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) || errors.Is(err, context.Canceled) {
		slog.Info("shutting down", "reason", err)
		return nil
	}

	return err
}
