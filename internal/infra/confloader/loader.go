package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix marks the environment variables read into the config.
const DefaultEnvPrefix = "MEMKV_"

// envDelim separates nesting levels in environment variable names. A single
// underscore stays part of the key so that read_timeout survives.
const envDelim = "__"

// Loader merges the YAML file, the environment and flag overrides into one
// config struct. Each source overrides the keys set by the one before it.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option customises a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile names the YAML file. Without it only the environment and
// overrides are read.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets dotted-key values applied after every other source.
// Command-line flags are passed this way.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type source struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

// sources lists the configured sources, lowest precedence first.
func (l *Loader) sources() []source {
	var out []source
	if l.filePath != "" {
		out = append(out, source{name: "file " + l.filePath, provider: file.Provider(l.filePath), parser: yaml.Parser()})
	}
	out = append(out, source{name: "env", provider: env.Provider(l.envPrefix, ".", l.envKey)})
	if len(l.overrides) > 0 {
		out = append(out, source{name: "overrides", provider: mapProvider(l.overrides)})
	}
	return out
}

// envKey maps MEMKV_SERVER__REDIS__READ_TIMEOUT to server.redis.read_timeout.
func (l *Loader) envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	return strings.ReplaceAll(name, envDelim, ".")
}

// Load reads every source and decodes the merged keys into target. Fields
// that no source mentions keep their value, so target normally arrives
// filled with defaults.
func (l *Loader) Load(target any) error {
	for _, src := range l.sources() {
		if err := l.k.Load(src.provider, src.parser); err != nil {
			return fmt.Errorf("load %s: %w", src.name, err)
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
