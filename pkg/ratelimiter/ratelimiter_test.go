package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testConfig = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Minute}

func TestNewBucket_Validation(t *testing.T) {
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(store, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}

	b, err := ratelimiter.NewBucket(store, testConfig)
	require.NoError(t, err)
	_, err = b.AllowN(t.Context(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

// exercise runs the same scenario against any store.
func exercise(t *testing.T, store ratelimiter.Store, clk *clock) {
	t.Helper()
	ctx := t.Context()
	b, err := ratelimiter.NewBucket(store, testConfig)
	require.NoError(t, err)

	for i := range 3 {
		res, err := b.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "attempt %d", i)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := b.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, time.Minute, res.RetryAfter(clk.Now()))

	other, err := b.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Allowed())

	// One interval refills one token, which pays back the denied attempt.
	clk.Advance(time.Minute)
	res, err = b.Status(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	// A long pause refills to capacity, never beyond.
	clk.Advance(time.Hour)
	res, err = b.Status(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Remaining)

	for range 4 {
		_, err = b.Allow(ctx, "ip")
		require.NoError(t, err)
	}
	require.NoError(t, b.Reset(ctx, "ip"))
	res, err = b.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestMemoryStore(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(clk.Now), ratelimiter.WithCleanupInterval(0))
	defer store.Close()

	exercise(t, store, clk)
	assert.Equal(t, 2, store.Len())
	store.Close()
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := ratelimiter.NewRedisStore(rdb, "rl", ratelimiter.WithRedisClock(clk.Now))

	exercise(t, store, clk)
	assert.True(t, mr.Exists("rl:ip"))
	assert.Positive(t, mr.TTL("rl:ip"))

	mr.Close()
	_, _, err := store.ConsumeTokens(t.Context(), "ip", 1, testConfig)
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}

func TestComposite(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	fixed := func(v string) ratelimiter.KeyFunc { return func(*http.Request) string { return v } }

	assert.Equal(t, "", ratelimiter.Composite(fixed(""), fixed(""))(r))
	assert.Equal(t, "acme:192.0.2.1", ratelimiter.Composite(fixed("acme"), fixed(""), fixed("192.0.2.1"))(r))

	long := ratelimiter.Composite(fixed(strings.Repeat("a", 40)), fixed(strings.Repeat("b", 40)))(r)
	assert.LessOrEqual(t, len(long), 64)
	assert.Equal(t, long, ratelimiter.Composite(fixed(strings.Repeat("a", 40)), fixed(strings.Repeat("b", 40)))(r))
}

func TestMiddleware(t *testing.T) {
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	defer store.Close()
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Minute})
	require.NoError(t, err)

	key := func(r *http.Request) string { return r.Header.Get("X-Key") }
	h := ratelimiter.Middleware(b, key, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(k string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if k != "" {
			r.Header.Set("X-Key", k)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := send("a")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send("a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("b").Code)
	assert.Equal(t, http.StatusNoContent, send("").Code)
	assert.Equal(t, http.StatusNoContent, send("").Code)
}
