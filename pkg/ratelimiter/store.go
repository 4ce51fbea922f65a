package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state.
type Store interface {
	// ConsumeTokens refills the bucket for key, takes tokens from it and
	// returns what is left (negative when the request must be denied)
	// together with the time of the next refill. Zero tokens only refills.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)

	// Reset drops the bucket for key.
	Reset(ctx context.Context, key string) error
}
