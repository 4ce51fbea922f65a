package clientip

import "net/http"

// Middleware resolves the client address once per request and stores it in
// the request context.
func Middleware(trustedHeaders ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := FromRequest(r, trustedHeaders...)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ip)))
		})
	}
}
