package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/memkv-go/internal/storage/snapshot"
	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

// Volatile keeps the key space in memory only. Save and Load do nothing.
type Volatile struct {
	*keyspace
	cfg RdbConfig
}

func (v *Volatile) Get(_ context.Context, key string) (string, bool) { return v.get(key) }

func (v *Volatile) Set(_ context.Context, key, value string, expiry time.Time) {
	v.set(key, value, expiry)
}

func (v *Volatile) Keys(_ context.Context, pattern string) ([]string, error) {
	return v.keys(matcher(pattern)), nil
}

func (v *Volatile) Save(context.Context) error { return nil }
func (v *Volatile) Load(context.Context) error { return nil }
func (v *Volatile) Config() RdbConfig          { return v.cfg }
func (v *Volatile) Len() int                   { return v.len() }
func (v *Volatile) Compact(now time.Time) int  { return v.compact(now) }

// Durable is the in-memory key space backed by a snapshot file.
type Durable struct {
	*keyspace
	cfg     RdbConfig
	logger  *slog.Logger
	metrics *metric.Registry

	// saveMu serializes saves so the last one to finish holds the newest state.
	saveMu sync.Mutex
}

func (d *Durable) Get(_ context.Context, key string) (string, bool) { return d.get(key) }

func (d *Durable) Set(_ context.Context, key, value string, expiry time.Time) {
	d.set(key, value, expiry)
}

func (d *Durable) Keys(_ context.Context, pattern string) ([]string, error) {
	return d.keys(matcher(pattern)), nil
}

func (d *Durable) Config() RdbConfig         { return d.cfg }
func (d *Durable) Len() int                  { return d.len() }
func (d *Durable) Compact(now time.Time) int { return d.compact(now) }

// Save writes a point-in-time copy of the key space to the snapshot file.
// The key space is only locked while the copy is taken.
func (d *Durable) Save(_ context.Context) error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	start := time.Now()

	d.mu.RLock()
	entries := make([]snapshot.Entry, 0, len(d.items))
	for key, v := range d.items {
		entries = append(entries, snapshot.Entry{Key: key, Value: v.Value, ExpiresAt: v.Expiry})
	}
	d.mu.RUnlock()

	size, err := snapshot.WriteFile(d.cfg.Path(), entries)

	d.metrics.ObserveSnapshotSave(time.Since(start), size, err)
	if err != nil {
		d.logger.Error("snapshot save failed", "path", d.cfg.Path(), "error", err)
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	d.logger.Info("snapshot saved",
		"path", d.cfg.Path(),
		"keys", len(entries),
		"bytes", size,
		"elapsed", time.Since(start))
	return nil
}

// Load replaces the key space with the snapshot contents.
//
// A missing file leaves the key space empty. A corrupt file loads the
// entries read before the corruption and logs a warning. Any other read
// failure is returned wrapped in ErrStorageIO.
func (d *Durable) Load(_ context.Context) error {
	path := d.cfg.Path()

	entries, err := snapshot.ReadFile(path)
	if err != nil {
		if !errors.Is(err, snapshot.ErrFormat) {
			return fmt.Errorf("%w: %w", ErrStorageIO, err)
		}
		d.logger.Warn("snapshot is corrupt, keeping entries read before the error",
			"path", path,
			"recovered", len(entries),
			"error", err)
	}

	items := make(map[string]StoredValue, len(entries))
	for _, e := range entries {
		items[e.Key] = StoredValue{Value: e.Value, Expiry: e.ExpiresAt}
	}
	d.replace(items)

	d.metrics.SetSnapshotLoadedKeys(len(items))
	d.logger.Info("snapshot loaded", "path", path, "keys", len(items))
	return nil
}
