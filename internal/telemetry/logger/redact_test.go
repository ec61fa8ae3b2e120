package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func logJSON(t *testing.T, cfg Config, fn func(Logger)) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	cfg.Format = "json"
	cfg.Output = &buf
	if cfg.Level == "" {
		cfg.Level = "info"
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fn(l)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	return logEntry
}

func TestRedactSensitive_StoredValue(t *testing.T) {
	entry := logJSON(t, Config{RedactValues: true}, func(l Logger) {
		l.Info("command executed", "command", "SET", "key", "user:1", "value", "hunter2")
	})

	if got := entry["value"]; got != "***REDACTED***(7 bytes)" {
		t.Errorf("value = %v, want masked", got)
	}
	if got := entry["key"]; got != "user:1" {
		t.Errorf("key = %v, want %q", got, "user:1")
	}
}

func TestRedactSensitive_Disabled(t *testing.T) {
	entry := logJSON(t, Config{RedactValues: false}, func(l Logger) {
		l.Info("command executed", "value", "hunter2")
	})

	if got := entry["value"]; got != "hunter2" {
		t.Errorf("value = %v, want %q", got, "hunter2")
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	tests := []struct {
		key string
	}{
		{"password"},
		{"db_password"},
		{"secret"},
		{"client_secret"},
		{"credential"},
		{"auth_header"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			entry := logJSON(t, Config{}, func(l Logger) {
				l.Info("test", tt.key, "sensitive-data")
			})
			if got := entry[tt.key]; got != redactedValue {
				t.Errorf("%s = %v, want %q", tt.key, got, redactedValue)
			}
		})
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	entry := logJSON(t, Config{RedactValues: true}, func(l Logger) {
		l.Info("test", "command", "GET", "pattern", "user:*", "value", "")
	})

	if got := entry["command"]; got != "GET" {
		t.Errorf("command = %v, want %q", got, "GET")
	}
	if got := entry["pattern"]; got != "user:*" {
		t.Errorf("pattern = %v, want %q", got, "user:*")
	}
	if got := entry["value"]; got != "" {
		t.Errorf("empty value = %v, want empty", got)
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	redactValues.Store(true)

	a := redactSensitive(slog.Group("cmd", slog.String("value", "abc"), slog.String("key", "k")))
	attrs := a.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("group has %d attrs, want 2", len(attrs))
	}
	if got := attrs[0].Value.String(); !strings.HasPrefix(got, redactedValue) {
		t.Errorf("nested value = %q, want redacted", got)
	}
	if got := attrs[1].Value.String(); got != "k" {
		t.Errorf("nested key = %q, want %q", got, "k")
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***REDACTED***(0 bytes)"},
		{"a", "***REDACTED***(1 bytes)"},
		{strings.Repeat("x", 300), "***REDACTED***(300 bytes)"},
	}

	for _, tt := range tests {
		if got := RedactString(tt.input); got != tt.want {
			t.Errorf("RedactString(%d bytes) = %q, want %q", len(tt.input), got, tt.want)
		}
	}
}

func TestIsValueKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"value", true},
		{"VALUE", true},
		{"echo", true},
		{"key", false},
		{"values", false},
	}

	for _, tt := range tests {
		if got := IsValueKey(tt.key); got != tt.want {
			t.Errorf("IsValueKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"secret", true},
		{"auth", true},
		{"key", false},
		{"command", false},
		{"remote", false},
	}

	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
