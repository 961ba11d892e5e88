// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping the
// package free of net/http lets services consume request metadata without
// pulling in transport code.
package requestcontext

import (
	"context"
	"time"

	id "sentra/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	deviceInfoKey  struct{}
)

// ActorID retrieves the initiating actor's id from the context. Returns the
// zero value if not set.
func ActorID(ctx context.Context) id.ActorID {
	if v, ok := ctx.Value(actorIDKey{}).(id.ActorID); ok {
		return v
	}
	return id.ActorID{}
}

// WithActorID injects the initiating actor's id into the context.
func WithActorID(ctx context.Context, actor id.ActorID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// ActorRole retrieves the initiating actor's role. Defaults to RoleAgent when
// unset so the most restrictive policy applies.
func ActorRole(ctx context.Context) id.Role {
	if v, ok := ctx.Value(actorRoleKey{}).(id.Role); ok {
		return v
	}
	return id.RoleAgent
}

// WithActorRole injects the initiating actor's role into the context.
func WithActorRole(ctx context.Context, role id.Role) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// RequestID retrieves the request correlation id.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request-scoped time so every operation within one request
// observes the same instant. Falls back to time.Now when unset.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Tests use this to pin the
// clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// ClientIP retrieves the originating client IP.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientIP injects the originating client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// DeviceInfo retrieves the parsed device description captured by middleware.
func DeviceInfo(ctx context.Context) string {
	if v, ok := ctx.Value(deviceInfoKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceInfo injects a device description.
func WithDeviceInfo(ctx context.Context, info string) context.Context {
	return context.WithValue(ctx, deviceInfoKey{}, info)
}
