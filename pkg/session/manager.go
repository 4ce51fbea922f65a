package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
	"github.com/dmitrymomot/sessionkit/pkg/i18n"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

// Manager holds the process-wide collaborators and configuration. It is safe
// for concurrent use; per-request state lives in Session.
type Manager struct {
	store         Store
	transport     Transport
	config        Config
	tokens        *token.Generator
	codec         Codec
	tenantFunc    TenantFunc
	languageFunc  LanguageFunc
	secureFunc    SecureFunc
	transientFunc TransientFunc
	logger        *slog.Logger
	now           func() time.Time
	cookieManager *cookie.Manager
	cookieOptions []cookie.Option
}

// New creates a new session manager with the given options
func New(opts ...Option) *Manager {
	m := &Manager{
		config:     DefaultConfig(),
		codec:      JSONCodec{},
		tenantFunc: tenantFromContext,
		secureFunc: IsSecureRequest,
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore()
	}

	if m.tokens == nil {
		m.tokens = token.NewGenerator(m.config.EntropyLength)
	}

	if m.transport == nil {
		if m.cookieManager == nil {
			// Fail fast on misconfiguration to prevent insecure runtime behavior
			panic("session: cookie manager is required when using default cookie transport")
		}
		m.transport = NewCookieTransport(m.cookieManager, m.config, m.cookieOptions...)
	}

	m.logger = m.logger.With(logger.Component("session"))

	return m
}

// Config returns the configuration in effect
func (m *Manager) Config() Config {
	return m.config
}

// Session returns an unstarted session bound to the request/response pair.
func (m *Manager) Session(w http.ResponseWriter, r *http.Request) *Session {
	return &Session{
		m:        m,
		w:        w,
		r:        r,
		state:    StateUnstarted,
		values:   make(map[string]any),
		sections: newSectionCache(),
	}
}

// Start returns a started session for the request.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	s := m.Session(w, r)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DestroyAllSessionsOfUser removes every session of userID in companyID.
// Intended for administrative use outside of any request session.
func (m *Manager) DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error {
	if err := m.store.DestroyAllSessionsOfUser(ctx, companyID, userID); err != nil {
		return fmt.Errorf("session: destroy sessions of user: %w", err)
	}
	m.logger.InfoContext(ctx, "destroyed all sessions of user",
		logger.CompanyID(companyID),
		logger.UserID(userID),
	)
	return nil
}

// PurgeExpired removes sessions idle for longer than the configured timeout
// when the store supports it. Stores that expire rows by themselves report 0.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := m.store.(Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.PurgeExpired(ctx, m.now().Add(-m.config.Timeout))
	if err != nil {
		return 0, fmt.Errorf("session: purge expired: %w", err)
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "purged expired sessions", slog.Int64("count", n))
	}
	return n, nil
}

func (m *Manager) newTokens() (Tokens, error) {
	sessionToken, err := m.tokens.Generate()
	if err != nil {
		return Tokens{}, errors.Join(ErrTokenGeneration, err)
	}
	csrfToken, err := m.tokens.Generate()
	if err != nil {
		return Tokens{}, errors.Join(ErrTokenGeneration, err)
	}
	return Tokens{Session: sessionToken, CSRF: csrfToken}, nil
}

func (m *Manager) language(r *http.Request) string {
	if m.languageFunc != nil {
		if lang := m.languageFunc(r); lang != "" {
			return lang
		}
		return m.config.DefaultLanguage
	}
	if lang, ok := i18n.LocaleFromContext(r.Context()); ok {
		return lang
	}
	return m.config.DefaultLanguage
}

func (m *Manager) secure(r *http.Request) bool {
	return m.secureFunc(r)
}

func tenantFromContext(ctx context.Context, _ *http.Request) (int64, error) {
	if id, ok := tenant.IDFromContext(ctx); ok {
		return id, nil
	}
	return 0, ErrNoTenant
}
