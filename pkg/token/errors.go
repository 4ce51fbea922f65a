package token

import "errors"

var (
	ErrInvalidEntropyLength = errors.New("token.invalid_entropy_length")
	ErrEntropyUnavailable   = errors.New("token.entropy_unavailable")
)
