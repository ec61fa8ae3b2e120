package config

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/yndnr/memkv-go/internal/storage"
)

// ServerConfig is the root configuration for memkv-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Redis RedisConfig `koanf:"redis"`
	HTTP  HTTPConfig  `koanf:"http"`
}

// RedisConfig configures the RESP listener.
type RedisConfig struct {
	// Addr is the bind host.
	Addr         string        `koanf:"addr"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	// RateLimit is commands per second per client IP; 0 disables it.
	RateLimit int `koanf:"rate_limit"`
	// MaxClients caps concurrent connections; 0 means no cap.
	MaxClients int `koanf:"max_clients"`
}

// Address returns the host:port listen address.
func (c RedisConfig) Address() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

// HTTPConfig configures the metrics and health endpoint.
type HTTPConfig struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// StorageSection configures the key space and its snapshot.
type StorageSection struct {
	// Dir and DBFilename locate the snapshot. Leaving either empty runs the
	// server without persistence.
	Dir        string `koanf:"dir"`
	DBFilename string `koanf:"dbfilename"`

	// SaveInterval is the period between background snapshots; 0 disables them.
	SaveInterval time.Duration `koanf:"save_interval"`
	// CompactInterval is the period between expired-key sweeps; 0 disables them.
	CompactInterval time.Duration `koanf:"compact_interval"`
}

// RdbConfig returns the snapshot location.
func (s StorageSection) RdbConfig() storage.RdbConfig {
	return storage.RdbConfig{Dir: s.Dir, DBFilename: s.DBFilename}
}

// LogSection configures logging.
type LogSection struct {
	Level        string `koanf:"level"`
	Format       string `koanf:"format"`
	RedactValues bool   `koanf:"redact_values"`
}

// LogValue renders the effective configuration for the startup log.
func (c *ServerConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("redis_addr", c.Server.Redis.Address()),
		slog.String("http_addr", c.Server.HTTP.Addr),
		slog.String("dir", c.Storage.Dir),
		slog.String("dbfilename", c.Storage.DBFilename),
		slog.Duration("save_interval", c.Storage.SaveInterval),
		slog.Duration("compact_interval", c.Storage.CompactInterval),
		slog.String("log_level", c.Log.Level),
	)
}
