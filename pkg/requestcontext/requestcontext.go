// Package requestcontext carries per-request values (request id, client
// metadata, authenticated actor, request time) through context.Context.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	actorKey     struct{}
	timeKey      struct{}
)

// Actor identifies the authenticated caller. All fields may be empty for
// unauthenticated requests.
type Actor struct {
	UserID string
	Email  string
	Role   string
}

// IsZero reports whether no actor was attached.
func (a Actor) IsZero() bool {
	return a.UserID == "" && a.Email == "" && a.Role == ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata stores the client identifier and user agent resolved by
// the metadata middleware.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActor(ctx context.Context) Actor {
	if v, ok := ctx.Value(actorKey{}).(Actor); ok {
		return v
	}
	return Actor{}
}

// WithTime pins the request time so every component handling the request
// observes the same instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}

// Now returns the pinned request time, or time.Now() when none is set.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(timeKey{}).(time.Time); ok && !v.IsZero() {
		return v
	}
	return time.Now()
}
