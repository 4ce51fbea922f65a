package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Middleware creates HTTP middleware that extracts tenant information
// from incoming requests and adds it to the request context.
func Middleware(resolver Resolver, provider Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		cache:         NewInMemoryCache(DefaultCacheSize),
		cacheTTL:      5 * time.Minute,
		errorHandler:  defaultErrorHandler,
		requireActive: true,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			identifier, err := resolver.Resolve(r)
			if err != nil {
				cfg.errorHandler(w, r, errors.Join(ErrInvalidIdentifier, err))
				return
			}

			// No identifier: continue without tenant; RequireTenant guards routes that need one.
			if identifier == "" {
				next.ServeHTTP(w, r)
				return
			}

			t, ok := cfg.cache.Get(r.Context(), identifier)
			if !ok {
				t, err = provider.GetByIdentifier(r.Context(), identifier)
				if err != nil {
					if !errors.Is(err, ErrTenantNotFound) {
						cfg.logger.ErrorContext(r.Context(), "failed to load tenant",
							slog.String("identifier", identifier),
							logger.Error(err),
						)
					}
					cfg.errorHandler(w, r, err)
					return
				}
				cfg.cache.Set(r.Context(), identifier, t, cfg.cacheTTL)
			}

			if cfg.requireActive && !t.Active {
				cfg.errorHandler(w, r, ErrInactiveTenant)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant creates middleware that ensures a tenant is present in the context.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
