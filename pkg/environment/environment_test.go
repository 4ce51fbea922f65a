package environment_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/environment"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want environment.Environment
	}{
		{"dev", environment.Development},
		{"Development", environment.Development},
		{" prod ", environment.Production},
		{"production", environment.Production},
		{"stage", environment.Staging},
		{"qa", environment.Environment("qa")},
		{"", environment.Environment("")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, environment.Parse(tt.in))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := environment.WithContext(context.Background(), environment.Production)
	assert.Equal(t, environment.Production, environment.FromContext(ctx))
	assert.True(t, environment.IsProduction(ctx))
	assert.False(t, environment.IsDevelopment(ctx))
	assert.False(t, environment.IsStaging(ctx))

	assert.Empty(t, environment.FromContext(context.Background()))
	assert.True(t, environment.IsStaging(environment.WithContext(context.Background(), "stage")))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got environment.Environment
	h := environment.Middleware(environment.Staging)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = environment.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, environment.Staging, got)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithTextFormatter(),
		logger.WithOutput(&buf),
		logger.WithContextExtractors(environment.LoggerExtractor()),
	)
	require.NotNil(t, log)

	log.InfoContext(environment.WithContext(context.Background(), environment.Development), "hello")
	assert.Contains(t, buf.String(), "env=development")

	buf.Reset()
	log.InfoContext(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "env=")
}
