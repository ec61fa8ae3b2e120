package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// redactValues toggles masking of stored values. Set by New.
var redactValues atomic.Bool

// Attribute keys that carry client data.
var valueKeys = []string{
	"value",
	"echo",
}

// Attribute key patterns that are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"credential",
	"auth",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if redactValues.Load() && IsValueKey(a.Key) {
			return slog.String(a.Key, RedactString(strVal))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactString masks a value, keeping only its length.
func RedactString(value string) string {
	return fmt.Sprintf("%s(%d bytes)", redactedValue, len(value))
}

// IsValueKey reports whether an attribute key names client data.
func IsValueKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, k := range valueKeys {
		if keyLower == k {
			return true
		}
	}
	return false
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
