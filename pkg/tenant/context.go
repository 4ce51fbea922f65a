package tenant

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant adds a tenant to the context.
func WithTenant(ctx context.Context, tenant *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, tenant)
}

// FromContext retrieves the tenant from the context.
// Returns nil, false if no tenant is found.
func FromContext(ctx context.Context) (*Tenant, bool) {
	tenant, ok := ctx.Value(contextKey{}).(*Tenant)
	return tenant, ok && tenant != nil
}

// IDFromContext retrieves just the company id from the context.
func IDFromContext(ctx context.Context) (int64, bool) {
	tenant, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return tenant.ID, true
}

// MustFromContext retrieves the tenant from the context.
// Panics if no tenant is found.
func MustFromContext(ctx context.Context) *Tenant {
	tenant, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return tenant
}

// LoggerExtractor returns a ContextExtractor for the logger that adds the company id
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return logger.CompanyID(id), true
		}
		return slog.Attr{}, false
	}
}
