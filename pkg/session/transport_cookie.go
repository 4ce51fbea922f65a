package session

import (
	"net/http"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
)

// CookieTransport implements Transport using two cookies: an encrypted,
// HttpOnly session cookie and a plain CSRF cookie readable by client script.
type CookieTransport struct {
	cookieMgr   *cookie.Manager
	sessionName string
	csrfName    string
	options     []cookie.Option
}

// NewCookieTransport creates a new cookie-based transport. Names, path and
// domain come from cfg; opts are applied last.
func NewCookieTransport(cookieMgr *cookie.Manager, cfg Config, opts ...cookie.Option) *CookieTransport {
	base := []cookie.Option{cookie.WithPath(cfg.CookiePath)}
	if cfg.CookieDomain != "" {
		base = append(base, cookie.WithDomain(cfg.CookieDomain))
	}
	return &CookieTransport{
		cookieMgr:   cookieMgr,
		sessionName: cfg.SessionCookieName,
		csrfName:    cfg.CSRFCookieName,
		options:     append(base, opts...),
	}
}

// GetToken decrypts the session cookie. A missing or tampered cookie is
// reported as ErrSessionNotFound.
func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	token, err := t.cookieMgr.GetEncrypted(r, t.sessionName)
	if err != nil || token == "" {
		return "", ErrSessionNotFound
	}
	return token, nil
}

// SetTokens writes both cookies. Session-lifetime cookies: no MaxAge.
func (t *CookieTransport) SetTokens(w http.ResponseWriter, tokens Tokens, secure bool) error {
	sessionOpts := append([]cookie.Option{
		cookie.WithSecure(secure),
		cookie.WithHTTPOnly(true),
		cookie.WithSameSite(http.SameSiteLaxMode),
	}, t.options...)
	if err := t.cookieMgr.SetEncrypted(w, t.sessionName, tokens.Session, sessionOpts...); err != nil {
		return err
	}

	csrfOpts := append([]cookie.Option{
		cookie.WithSecure(secure),
		cookie.WithHTTPOnly(false),
		cookie.WithSameSite(http.SameSiteLaxMode),
	}, t.options...)
	return t.cookieMgr.Set(w, t.csrfName, tokens.CSRF, csrfOpts...)
}

// ClearTokens expires both cookies
func (t *CookieTransport) ClearTokens(w http.ResponseWriter) error {
	t.cookieMgr.Delete(w, t.sessionName, t.options...)
	t.cookieMgr.Delete(w, t.csrfName, t.options...)
	return nil
}
