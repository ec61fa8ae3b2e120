package config

import "time"

// Default configuration values.
const (
	DefaultRedisAddr    = "127.0.0.1"
	DefaultRedisPort    = 6379
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute

	DefaultCompactInterval = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration. Persistence and the HTTP
// endpoint are off until configured.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Addr:         DefaultRedisAddr,
				Port:         DefaultRedisPort,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
			},
		},
		Storage: StorageSection{
			CompactInterval: DefaultCompactInterval,
		},
		Log: LogSection{
			Level:        DefaultLogLevel,
			Format:       DefaultLogFormat,
			RedactValues: true,
		},
	}
}
