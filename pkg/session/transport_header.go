package session

import (
	"net/http"
	"strings"
)

// HeaderTransport implements Transport using HTTP headers, for API clients
// that cannot hold cookies.
type HeaderTransport struct {
	headerName string
	csrfHeader string
	prefix     string
}

// NewHeaderTransport creates a new header-based transport
func NewHeaderTransport(headerName string, opts ...HeaderOption) *HeaderTransport {
	t := &HeaderTransport{
		headerName: headerName,
		csrfHeader: "X-CSRF-Token",
		prefix:     "Bearer ",
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// HeaderOption is a functional option for HeaderTransport
type HeaderOption func(*HeaderTransport)

// WithHeaderPrefix sets a custom prefix for the header value
func WithHeaderPrefix(prefix string) HeaderOption {
	return func(t *HeaderTransport) {
		t.prefix = prefix
	}
}

// WithCSRFHeader sets the response header carrying the CSRF token
func WithCSRFHeader(name string) HeaderOption {
	return func(t *HeaderTransport) {
		t.csrfHeader = name
	}
}

// GetToken extracts the session token from the header
func (t *HeaderTransport) GetToken(r *http.Request) (string, error) {
	value := r.Header.Get(t.headerName)
	if t.prefix != "" {
		value = strings.TrimPrefix(value, t.prefix)
	}
	if value == "" {
		return "", ErrSessionNotFound
	}
	return value, nil
}

// SetTokens sends the tokens in response headers. Headers are written on any
// channel; callers gate plaintext channels before reaching the transport.
func (t *HeaderTransport) SetTokens(w http.ResponseWriter, tokens Tokens, _ bool) error {
	w.Header().Set(t.headerName, t.prefix+tokens.Session)
	if t.csrfHeader != "" {
		w.Header().Set(t.csrfHeader, tokens.CSRF)
	}
	return nil
}

// ClearTokens removes the session headers from the response
func (t *HeaderTransport) ClearTokens(w http.ResponseWriter) error {
	w.Header().Del(t.headerName)
	if t.csrfHeader != "" {
		w.Header().Del(t.csrfHeader)
	}
	return nil
}
