package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

// TenantFunc resolves the company a request belongs to.
type TenantFunc func(ctx context.Context, r *http.Request) (int64, error)

// LanguageFunc resolves the language a new or restarted session gets.
// An empty result falls back to Config.DefaultLanguage.
type LanguageFunc func(r *http.Request) string

// TransientFunc reports whether a request should get a transient session
// that never touches the store.
type TransientFunc func(r *http.Request) bool

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithStore sets the session store
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTransport sets a custom session transport
func WithTransport(transport Transport) Option {
	return func(m *Manager) {
		m.transport = transport
	}
}

// WithConfig sets custom configuration
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithTimeout sets the idle timeout after which sessions restart
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.config.Timeout = timeout
	}
}

// WithTokenGenerator sets the generator used for session and CSRF tokens
func WithTokenGenerator(gen *token.Generator) Option {
	return func(m *Manager) {
		m.tokens = gen
	}
}

// WithCodec sets the serializer for the values bag and section payloads
func WithCodec(codec Codec) Option {
	return func(m *Manager) {
		m.codec = codec
	}
}

// WithTenantFunc sets the company resolver
func WithTenantFunc(fn TenantFunc) Option {
	return func(m *Manager) {
		m.tenantFunc = fn
	}
}

// WithLanguageFunc sets the language resolver
func WithLanguageFunc(fn LanguageFunc) Option {
	return func(m *Manager) {
		m.languageFunc = fn
	}
}

// WithSecureFunc overrides secure-channel detection
func WithSecureFunc(fn SecureFunc) Option {
	return func(m *Manager) {
		m.secureFunc = fn
	}
}

// WithTransientFunc enables transient sessions for matching requests
func WithTransientFunc(fn TransientFunc) Option {
	return func(m *Manager) {
		m.transientFunc = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCookieManager sets the cookie manager for the default cookie transport
func WithCookieManager(cookieMgr *cookie.Manager, opts ...cookie.Option) Option {
	return func(m *Manager) {
		m.cookieManager = cookieMgr
		m.cookieOptions = opts
	}
}
