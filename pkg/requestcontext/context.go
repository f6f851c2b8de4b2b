// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free of net/http
// lets services and workers depend on it without pulling in transport code.
//
// Usage in services (read values):
//
//	owner := requestcontext.OwnerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithOwnerID(ctx, owner)
//	ctx = requestcontext.WithTime(ctx, time.Unix(1000, 0))
package requestcontext

import (
	"context"
	"time"

	id "consentwindow/pkg/domain"
)

type (
	ownerIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOwnerID     = ownerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OwnerID retrieves the authenticated caller from the context.
// Returns the zero value (nil UUID) if not set.
func OwnerID(ctx context.Context) id.OwnerID {
	if owner, ok := ctx.Value(ContextKeyOwnerID).(id.OwnerID); ok {
		return owner
	}
	return id.OwnerID{}
}

// WithOwnerID injects the authenticated caller into the context.
func WithOwnerID(ctx context.Context, owner id.OwnerID) context.Context {
	return context.WithValue(ctx, ContextKeyOwnerID, owner)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
//   - CLI commands
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
