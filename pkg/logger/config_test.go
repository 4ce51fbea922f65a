package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nope"))
}

func TestNewFromConfig(t *testing.T) {
	t.Run("production defaults to json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.NewFromConfig(logger.Config{Service: "sessiond", Env: "production"}, logger.WithOutput(buf))
		log.Debug("hidden")
		log.Info("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "sessiond", entry["service"])
	})

	t.Run("explicit level and format win", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.NewFromConfig(logger.Config{
			Service: "sessiond",
			Env:     "production",
			Level:   "debug",
			Format:  "text",
		}, logger.WithOutput(buf))
		log.Debug("visible")
		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "msg=visible")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.NewFromConfig(logger.Config{Format: "xml"})
		})
	})
}
