// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	owner, ok := requestcontext.Owner(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "imrich/pkg/domain"
)

type (
	accountIDKey   struct{}
	emailKey       struct{}
	clientIPKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyAccountID   = accountIDKey{}
	ContextKeyEmail       = emailKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Owner identity (set by the auth middleware)
// -----------------------------------------------------------------------------

// AccountID retrieves the authenticated account ID, or the zero value.
func AccountID(ctx context.Context) id.AccountID {
	if accountID, ok := ctx.Value(ContextKeyAccountID).(id.AccountID); ok {
		return accountID
	}
	return ""
}

// Email retrieves the authenticated owner's email, or the zero value.
func Email(ctx context.Context) id.Email {
	if email, ok := ctx.Value(ContextKeyEmail).(id.Email); ok {
		return email
	}
	return ""
}

// WithOwner injects the authenticated account and email into the context.
func WithOwner(ctx context.Context, accountID id.AccountID, email id.Email) context.Context {
	ctx = context.WithValue(ctx, ContextKeyAccountID, accountID)
	return context.WithValue(ctx, ContextKeyEmail, email)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

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
// Falls back to time.Now() for consumers and CLI commands.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
