package session

import (
	"net/http"
	"strings"
)

// SecureFunc reports whether a request arrived over an encrypted channel.
type SecureFunc func(r *http.Request) bool

// IsSecureRequest reports TLS connections and requests forwarded by a
// TLS-terminating proxy.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if first, _, ok := strings.Cut(proto, ","); ok {
		proto = first
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
