package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the normalized client address of r, or "" when none is
// valid. trustedHeaders are checked in order before RemoteAddr.
func FromRequest(r *http.Request, trustedHeaders ...string) string {
	for _, h := range trustedHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for candidate := range strings.SplitSeq(v, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
