package session

import (
	"errors"
	"net/http"
)

// CompositeTransport tries multiple transports in order
type CompositeTransport struct {
	transports []Transport
}

// NewCompositeTransport creates a composite transport that tries multiple transports
func NewCompositeTransport(transports ...Transport) *CompositeTransport {
	return &CompositeTransport{
		transports: transports,
	}
}

// GetToken extracts session token from first successful transport
func (t *CompositeTransport) GetToken(r *http.Request) (string, error) {
	for _, transport := range t.transports {
		token, err := transport.GetToken(r)
		if err == nil && token != "" {
			return token, nil
		}
	}
	return "", ErrSessionNotFound
}

// SetTokens sends the tokens via all configured transports
func (t *CompositeTransport) SetTokens(w http.ResponseWriter, tokens Tokens, secure bool) error {
	var errs []error
	for _, transport := range t.transports {
		if err := transport.SetTokens(w, tokens, secure); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearTokens removes the tokens from all configured transports
func (t *CompositeTransport) ClearTokens(w http.ResponseWriter) error {
	var errs []error
	for _, transport := range t.transports {
		if err := transport.ClearTokens(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
