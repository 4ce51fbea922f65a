package session_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

func TestConfig(t *testing.T) {
	t.Run("env defaults match DefaultConfig", func(t *testing.T) {
		var cfg session.Config
		require.NoError(t, env.Parse(&cfg))
		assert.Equal(t, session.DefaultConfig(), cfg)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("SESSION_TIMEOUT", "3s")
		t.Setenv("SESSION_ENTROPY_LENGTH", "64")
		t.Setenv("SESSION_ALLOW_INSECURE", "true")

		var cfg session.Config
		require.NoError(t, env.Parse(&cfg))
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, 64, cfg.EntropyLength)
		assert.True(t, cfg.AllowInsecure)
	})

	t.Run("expiry is strictly after the timeout", func(t *testing.T) {
		cfg := session.DefaultConfig()
		last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.False(t, cfg.Expired(last, last.Add(cfg.Timeout)))
		assert.True(t, cfg.Expired(last, last.Add(cfg.Timeout+time.Nanosecond)))
	})
}
