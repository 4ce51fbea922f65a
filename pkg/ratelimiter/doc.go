// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis storage plus HTTP middleware.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Every attempt takes a token even when the bucket is empty,
// so a client that keeps hammering stays limited until it backs off.
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg)
//	r.With(ratelimiter.Middleware(limiter, keyFunc)).Post("/login", login)
package ratelimiter
