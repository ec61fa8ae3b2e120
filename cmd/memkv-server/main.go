package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
	"github.com/yndnr/memkv-go/internal/infra/confloader"
	"github.com/yndnr/memkv-go/internal/infra/shutdown"
	"github.com/yndnr/memkv-go/internal/server/config"
	"github.com/yndnr/memkv-go/internal/server/httpserver"
	"github.com/yndnr/memkv-go/internal/server/redisserver"
	"github.com/yndnr/memkv-go/internal/storage"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "memkv-server",
		Usage:   "In-memory key-value server speaking the Redis protocol",
		Version: buildinfo.Get().String(),
		Flags:   serverFlags(),
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"), flagOverrides(c))
		},
	}
}

func run(ctx context.Context, configFile string, overrides map[string]any) error {
	// Load configuration
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       os.Stderr,
		RedactValues: cfg.Log.RedactValues,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := log.Slog()

	log.Info("starting memkv-server", "build", buildinfo.Get(), "config", cfg)

	// Initialize storage and restore the snapshot
	metrics := metric.Global()
	store := storage.New(storage.Config{
		Rdb:     cfg.Storage.RdbConfig(),
		Logger:  slogLogger,
		Metrics: metrics,
	})
	metrics.MustRegister(metric.NewCollector(store))

	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, slogLogger)

	// Final snapshot runs last, after both listeners are closed
	shutdownHandler.OnShutdown("snapshot", func(ctx context.Context) error {
		if !store.Config().Enabled() {
			return nil
		}
		return store.Save(ctx)
	})

	// Background maintenance
	maintCtx, stopMaint := context.WithCancel(context.Background())
	maintDone := make(chan struct{})
	maintainer := storage.NewMaintainer(store, storage.MaintainerConfig{
		SaveInterval:    cfg.Storage.SaveInterval,
		CompactInterval: cfg.Storage.CompactInterval,
		Logger:          slogLogger,
		Metrics:         metrics,
	})
	go func() {
		defer close(maintDone)
		maintainer.Run(maintCtx)
	}()
	shutdownHandler.OnShutdown("maintainer", func(ctx context.Context) error {
		stopMaint()
		select {
		case <-maintDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	// RESP listener
	redisCfg := &redisserver.Config{
		Address:      cfg.Server.Redis.Address(),
		ReadTimeout:  cfg.Server.Redis.ReadTimeout,
		WriteTimeout: cfg.Server.Redis.WriteTimeout,
		IdleTimeout:  cfg.Server.Redis.IdleTimeout,
		RateLimit:    cfg.Server.Redis.RateLimit,
		MaxClients:   cfg.Server.Redis.MaxClients,
	}
	redisServer := redisserver.New(redisCfg, store, slogLogger, metrics)
	if err := redisServer.Start(context.Background()); err != nil {
		stopMaint()
		return fmt.Errorf("start redis server: %w", err)
	}
	shutdownHandler.OnShutdown("redis", redisServer.Shutdown)

	// Admin endpoint
	if cfg.Server.HTTP.Addr != "" {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics: metrics.Handler(),
			Store:   store,
			Logger:  slogLogger,
		})
		httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, slogLogger)
		if err := httpServer.Start(); err != nil {
			shutdownHandler.Run()
			return fmt.Errorf("start http server: %w", err)
		}
		shutdownHandler.OnShutdown("http", httpServer.Shutdown)
	}

	// Config file watcher for runtime log level changes
	if configFile != "" {
		stopWatch, err := watchConfig(configFile, overrides, slogLogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("watcher", stopWatch)
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, environment and flags.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
