package session

import "net/http"

// Tokens is the pair written to the client after start, login and logout.
type Tokens struct {
	Session string
	CSRF    string
}

// Transport defines how session tokens are transmitted between client and server
type Transport interface {
	// GetToken extracts the session token from the request.
	// Returns ErrSessionNotFound when the request carries none.
	GetToken(r *http.Request) (string, error)

	// SetTokens sends both tokens in the response. secure reports whether the
	// channel is encrypted.
	SetTokens(w http.ResponseWriter, tokens Tokens, secure bool) error

	// ClearTokens removes the tokens from the client
	ClearTokens(w http.ResponseWriter) error
}
