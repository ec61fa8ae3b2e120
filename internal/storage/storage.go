package storage

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

var (
	// ErrStorageIO wraps snapshot read and write failures.
	ErrStorageIO = errors.New("storage: snapshot I/O failed")

	// ErrKeysUnsupported is returned by backends that cannot enumerate keys.
	ErrKeysUnsupported = errors.New("storage: key enumeration not supported")
)

// RdbConfig locates the snapshot file. It is fixed at startup.
type RdbConfig struct {
	Dir        string
	DBFilename string
}

// Enabled reports whether both parts of the snapshot location are set.
func (c RdbConfig) Enabled() bool {
	return c.Dir != "" && c.DBFilename != ""
}

// Path returns the snapshot file path.
func (c RdbConfig) Path() string {
	return filepath.Join(c.Dir, c.DBFilename)
}

// Storage is the key space shared by all connections.
//
// Implementations are safe for concurrent use. A zero expiry means the key
// never expires; a key whose expiry has passed reads as absent.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, expiry time.Time)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Config() RdbConfig

	// Len returns the number of stored keys, expired ones included.
	Len() int
	// Compact removes keys expired at now and returns how many were removed.
	Compact(now time.Time) int
}

// Config configures the storage engine.
type Config struct {
	// Rdb is the snapshot location. When either field is empty the volatile
	// backend is used.
	Rdb RdbConfig

	// Logger is the structured logger.
	Logger *slog.Logger

	// Metrics receives snapshot and expiry metrics. Optional.
	Metrics *metric.Registry

	// Clock overrides time.Now; used by tests.
	Clock func() time.Time
}

// New returns the backend selected by cfg.Rdb. It does not load the snapshot;
// call Load before serving traffic.
func New(cfg Config) Storage {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	ks := newKeyspace(cfg.Clock)
	if !cfg.Rdb.Enabled() {
		cfg.Logger.Info("using volatile storage (no snapshot configured)")
		return &Volatile{keyspace: ks, cfg: cfg.Rdb}
	}

	cfg.Logger.Info("using durable storage", "path", cfg.Rdb.Path())
	return &Durable{
		keyspace: ks,
		cfg:      cfg.Rdb,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}
