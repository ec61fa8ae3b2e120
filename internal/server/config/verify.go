package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	r := cfg.Redis
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("server.redis.port must be between 1 and 65535, got %d", r.Port)
	}
	if r.ReadTimeout < 0 || r.WriteTimeout < 0 || r.IdleTimeout < 0 {
		return errors.New("server.redis timeouts must not be negative")
	}
	if r.RateLimit < 0 {
		return errors.New("server.redis.rate_limit must not be negative")
	}
	if r.MaxClients < 0 {
		return errors.New("server.redis.max_clients must not be negative")
	}

	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("server.http.addr: %w", err)
		}
		if cfg.HTTP.Addr == r.Address() {
			return errors.New("server.http.addr conflicts with the redis listen address")
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SaveInterval < 0 {
		return errors.New("storage.save_interval must not be negative")
	}
	if cfg.CompactInterval < 0 {
		return errors.New("storage.compact_interval must not be negative")
	}
	if strings.ContainsRune(cfg.DBFilename, os.PathSeparator) {
		return errors.New("storage.dbfilename must be a file name, not a path")
	}
	if cfg.Dir == "" || cfg.DBFilename == "" {
		return nil
	}

	// Check if the snapshot directory exists or can be created
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return fmt.Errorf("cannot create storage directory: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
