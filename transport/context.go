package transport

import "context"

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyRetried marks a request that has already been through one refresh-retry cycle
	ContextKeyRetried ContextKey = "retried"
)

// MarkRetried returns a context carrying the pending request marker
func MarkRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyRetried, true)
}

// IsRetried reports whether the request context carries the pending request marker
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(ContextKeyRetried).(bool)
	return retried
}
