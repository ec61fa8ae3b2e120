package logger

import "context"

type connIDKey struct{}

// WithConnID adds a connection id to the context. Records logged with this
// context through a logger from New carry a conn_id attribute.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey{}, id)
}

// ConnIDFromContext extracts the connection id from context.
func ConnIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(connIDKey{}).(string); ok {
		return id
	}
	return ""
}
