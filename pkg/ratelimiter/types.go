package ratelimiter

import (
	"fmt"
	"time"
)

// Config defines the token bucket, loaded from RATELIMIT_* environment variables.
type Config struct {
	// Capacity is the burst size
	Capacity int `env:"RATELIMIT_CAPACITY" envDefault:"10"`

	// RefillRate tokens are added every RefillInterval
	RefillRate     int           `env:"RATELIMIT_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"RATELIMIT_REFILL_INTERVAL" envDefault:"30s"`
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// fullAfter is how long an untouched bucket takes to refill completely.
func (c Config) fullAfter() time.Duration {
	return c.RefillInterval * time.Duration(c.Capacity/c.RefillRate+1)
}

// Result is the outcome of one check.
type Result struct {
	Limit     int
	Remaining int // negative when denied
	ResetAt   time.Time
}

// Allowed reports whether the attempt fit in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the next token, 0 when allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}
