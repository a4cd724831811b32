package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/config"
	"github.com/voyagen/epgvault/internal/httpclient"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/metrics"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider/mts"
	"github.com/voyagen/epgvault/internal/provider/united"
	"github.com/voyagen/epgvault/internal/server"
	"github.com/voyagen/epgvault/internal/service"
	"github.com/voyagen/epgvault/internal/store"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	serve := flag.Bool("serve", false, "Serve the HTTP API and run queued refresh jobs instead of running once")
	schedule := flag.String("schedule", "", "Cron expression with seconds; runs the pipeline on that schedule (overrides SCHEDULE)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logctx.Into(ctx, log)

	if err := run(ctx, cfg, *serve); err != nil {
		log.Error("exit", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, serve bool) error {
	log := logctx.From(ctx)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()

	var (
		appStore store.Store = st
		lock     service.Locker
		runState server.RunState
		queue    *cache.Queue
	)
	if cfg.RedisURL != "" {
		rds, err := cache.Open(ctx, cfg.RedisURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()
		appStore = store.NewCachedStore(st, rds)
		rl := cache.NewLock(rds, cache.RunLockKey, cfg.LockTTL)
		lock, runState = rl, rl
		queue = cache.NewQueue(rds, cache.RefreshQueue)
		log.Info("redis_connected", slog.String("features", "cache,lock,queue"))
	} else {
		ll := &service.LocalLock{}
		lock, runState = ll, ll
		log.Info("redis_disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pipeline := service.NewPipeline(appStore, buildProviders(cfg), lock, m, service.Options{
		SampleSize: cfg.DateSampleSize,
		StrictAuth: cfg.StrictAuth,
	})

	switch {
	case serve:
		if queue != nil {
			go service.NewWorker(queue, pipeline).Run(ctx)
		}
		if cfg.Schedule != "" {
			go func() {
				if err := service.Schedule(ctx, cfg.Schedule, pipeline); err != nil {
					log.Error("scheduler", slog.Any("err", err))
				}
			}()
		}
		var rq server.RefreshQueue
		if queue != nil {
			rq = queue
		}
		srv := server.New(appStore, rq, server.Options{
			Port:        cfg.ServerPort,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      log,
			RunState:    runState,
			Gatherer:    reg,
		})
		return srv.ListenAndServe(ctx)
	case cfg.Schedule != "":
		return service.Schedule(ctx, cfg.Schedule, pipeline)
	default:
		rep, err := pipeline.Run(ctx)
		if errors.Is(err, service.ErrEmptyRun) {
			log.Warn("nothing_loaded")
		}
		if rep != nil {
			for _, p := range rep.Providers {
				log.Info("provider_summary", slog.String("provider", p.Provider), slog.Any("counts", p.Counts),
					slog.Int("failures", len(p.Failures)), slog.Bool("auth_failed", p.AuthFailed))
			}
		}
		return err
	}
}

// openStore connects the backend named by the DATABASE_URL scheme. Postgres
// is migrated before use.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	log := logctx.From(ctx)
	switch cfg.StoreDriver() {
	case config.DriverPostgres:
		path := migrationsPath(cfg.MigrationsPath)
		v, err := store.RunMigrations(cfg.DatabaseURL, path)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrated", slog.String("path", path), slog.Uint64("version", uint64(v)))
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		return pg, nil
	case config.DriverMongo:
		mg, err := store.NewMongo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		return mg, nil
	}
	return nil, fmt.Errorf("unsupported store driver for %q", cfg.DatabaseURL)
}

// migrationsPath resolves dir against the working directory, falling back to
// the directory of the executable.
func migrationsPath(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), dir)
		}
	}
	return abs
}

// buildProviders returns the enabled providers in configured order. Each one
// gets its own HTTP client.
func buildProviders(cfg *config.Config) []service.Scraper {
	newHTTP := func() *httpclient.Client {
		opts := httpclient.Options{
			Timeout:           cfg.Timeout,
			UserAgent:         cfg.UserAgent,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}
		if cfg.Retry {
			opts.Retry = httpclient.DefaultRetryPolicy
		}
		return httpclient.New(opts)
	}
	unitedOpts := func(token string) united.Options {
		return united.Options{
			BaseURL:      cfg.UnitedBaseURL,
			ImageURL:     cfg.UnitedImageURL,
			BasicToken:   token,
			DefaultImage: cfg.DefaultImageURL,
		}
	}

	var out []service.Scraper
	for _, name := range cfg.Providers {
		switch name {
		case models.ProviderMTS:
			p := mts.New(newHTTP(), cfg.MTSBaseURL, cfg.DefaultImageURL)
			p.DropEmpty = cfg.DropEmpty(name)
			out = append(out, p)
		case models.ProviderSBB:
			p := united.NewSBB(newHTTP(), unitedOpts(cfg.SBBBasicToken))
			p.DropEmpty = cfg.DropEmpty(name)
			out = append(out, p)
		case models.ProviderSK:
			p := united.NewSK(newHTTP(), unitedOpts(cfg.SKBasicToken))
			p.DropEmpty = cfg.DropEmpty(name)
			out = append(out, p)
		}
	}
	return out
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return log
}
