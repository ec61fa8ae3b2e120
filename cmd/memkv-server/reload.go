package main

import (
	"context"
	"log/slog"

	"github.com/yndnr/memkv-go/internal/infra/confloader"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
)

// watchConfig re-reads configFile on change and applies the new log level.
// Other settings need a restart. The returned function stops the watcher.
func watchConfig(configFile string, overrides map[string]any, log *slog.Logger) (func(context.Context) error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(configFile); err != nil {
		return nil, err
	}
	w.OnChange(func(string) {
		reloadLogLevel(configFile, overrides, log)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	return func(context.Context) error {
		cancel()
		<-done
		return nil
	}, nil
}

func reloadLogLevel(configFile string, overrides map[string]any, log *slog.Logger) {
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}

	prev := logger.GetLevel()
	logger.SetLevel(cfg.Log.Level)
	if cur := logger.GetLevel(); cur != prev {
		log.Info("log level changed", "from", prev, "to", cur)
	}
}
