package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/yndnr/memkv-go/internal/telemetry/metric"
)

// MaintainerConfig configures background maintenance.
type MaintainerConfig struct {
	// SaveInterval is the period between automatic snapshots. Zero disables
	// them; they are also skipped when the store has no snapshot location.
	SaveInterval time.Duration

	// CompactInterval is the period between expired-key sweeps. Zero disables
	// them. Sweeping only bounds memory; reads never depend on it.
	CompactInterval time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Maintainer runs periodic snapshots and expired-key compaction.
type Maintainer struct {
	store   Storage
	cfg     MaintainerConfig
	logger  *slog.Logger
	metrics *metric.Registry
}

// NewMaintainer creates a maintainer for store.
func NewMaintainer(store Storage, cfg MaintainerConfig) *Maintainer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !store.Config().Enabled() {
		cfg.SaveInterval = 0
	}
	return &Maintainer{
		store:   store,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Run blocks until ctx is done.
func (m *Maintainer) Run(ctx context.Context) {
	saveC := tick(m.cfg.SaveInterval)
	compactC := tick(m.cfg.CompactInterval)
	if saveC.C == nil && compactC.C == nil {
		<-ctx.Done()
		return
	}
	defer saveC.stop()
	defer compactC.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-saveC.C:
			if err := m.store.Save(ctx); err != nil {
				m.logger.Error("background snapshot failed", "error", err)
			}
		case now := <-compactC.C:
			m.compact(now)
		}
	}
}

func (m *Maintainer) compact(now time.Time) {
	removed := m.store.Compact(now)
	m.metrics.AddKeysExpired(removed)
	if removed > 0 {
		m.logger.Debug("expired keys compacted", "removed", removed, "remaining", m.store.Len())
	}
}

type ticker struct {
	C <-chan time.Time
	t *time.Ticker
}

// tick returns a ticker, or one with a nil channel when d is not positive.
func tick(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{C: t.C, t: t}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
