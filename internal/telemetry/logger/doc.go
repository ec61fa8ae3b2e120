// Package logger provides structured logging for memkv on top of log/slog.
//
// One level is shared by every logger the package creates, so SetLevel
// applies at runtime to all components. Records logged with a context from
// WithConnID carry the connection id. Stored values are masked by default;
// set Config.RedactValues to false to log them verbatim while debugging.
package logger
