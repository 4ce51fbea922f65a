package tenant_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	p := tenant.NewStaticProvider(
		tenant.Tenant{ID: 1, Abbr: "Acme", Name: "Acme Inc", Active: true},
		tenant.Tenant{ID: 2, Abbr: "globex", Active: false},
	)

	got, err := p.GetByIdentifier(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	got, err = p.GetByIdentifier(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "globex", got.Abbr)

	_, err = p.GetByIdentifier(ctx, "initech")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	_, err = p.GetByIdentifier(ctx, " ")
	assert.ErrorIs(t, err, tenant.ErrInvalidIdentifier)
}

func TestResolvers(t *testing.T) {
	req := func(host, path string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
		return r
	}

	t.Run("subdomain with base domain", func(t *testing.T) {
		res := tenant.NewSubdomainResolver("example.com")
		for host, want := range map[string]string{
			"acme.example.com":      "acme",
			"ACME.example.com:8443": "acme",
			"www.acme.example.com":  "acme",
			"www.example.com":       "",
			"example.com":           "",
			"acme.other.com":        "",
		} {
			got, err := res.Resolve(req(host, "/"))
			require.NoError(t, err)
			assert.Equal(t, want, got, host)
		}
	})

	t.Run("subdomain without base domain", func(t *testing.T) {
		res := tenant.NewSubdomainResolver("")
		got, _ := res.Resolve(req("acme.app.com", "/"))
		assert.Equal(t, "acme", got)
		got, _ = res.Resolve(req("app.com", "/"))
		assert.Empty(t, got)
	})

	t.Run("header", func(t *testing.T) {
		r := req("example.com", "/")
		r.Header.Set("X-Tenant", " acme ")
		got, err := tenant.NewHeaderResolver("").Resolve(r)
		require.NoError(t, err)
		assert.Equal(t, "acme", got)
	})

	t.Run("path", func(t *testing.T) {
		got, err := tenant.NewPathResolver(2).Resolve(req("example.com", "/t/acme/dashboard"))
		require.NoError(t, err)
		assert.Equal(t, "acme", got)

		got, err = tenant.NewPathResolver(5).Resolve(req("example.com", "/t/acme"))
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = tenant.NewPathResolver(0).Resolve(req("example.com", "/"))
		assert.Error(t, err)
	})

	t.Run("composite", func(t *testing.T) {
		boom := errors.New("boom")
		failing := tenant.ResolverFunc(func(*http.Request) (string, error) { return "", boom })

		res := tenant.NewCompositeResolver(failing, tenant.NewHeaderResolver("X-Tenant"), tenant.NewSubdomainResolver("example.com"))
		got, err := res.Resolve(req("acme.example.com", "/"))
		require.NoError(t, err)
		assert.Equal(t, "acme", got)

		_, err = tenant.NewCompositeResolver(failing).Resolve(req("example.com", "/"))
		assert.ErrorIs(t, err, boom)
	})
}

type countingProvider struct {
	tenant.Provider
	calls int
}

func (p *countingProvider) GetByIdentifier(ctx context.Context, id string) (*tenant.Tenant, error) {
	p.calls++
	return p.Provider.GetByIdentifier(ctx, id)
}

func TestMiddleware(t *testing.T) {
	provider := &countingProvider{Provider: tenant.NewStaticProvider(
		tenant.Tenant{ID: 1, Abbr: "acme", Active: true},
		tenant.Tenant{ID: 2, Abbr: "globex", Active: false},
	)}

	var seen int64
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.IDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := tenant.Middleware(tenant.NewHeaderResolver("X-Tenant"), provider, tenant.WithSkipPaths("/healthz"))(ok)

	serve := func(id, path string) int {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if id != "" {
			r.Header.Set("X-Tenant", id)
		}
		w := httptest.NewRecorder()
		seen = 0
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("acme", "/"))
	assert.Equal(t, int64(1), seen)
	assert.Equal(t, http.StatusOK, serve("acme", "/"))
	assert.Equal(t, 1, provider.calls, "second lookup is cached")

	assert.Equal(t, http.StatusForbidden, serve("globex", "/"))
	assert.Equal(t, http.StatusNotFound, serve("initech", "/"))

	assert.Equal(t, http.StatusOK, serve("", "/"))
	assert.Zero(t, seen)

	assert.Equal(t, http.StatusOK, serve("initech", "/healthz"))

	guarded := tenant.RequireTenant(nil)(ok)
	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	_, ok := tenant.FromContext(ctx)
	assert.False(t, ok)
	assert.Panics(t, func() { tenant.MustFromContext(ctx) })

	ctx = tenant.WithTenant(ctx, &tenant.Tenant{ID: 9, Abbr: "acme"})
	assert.Equal(t, "acme", tenant.MustFromContext(ctx).Abbr)
	id, ok := tenant.IDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithTextFormatter(), logger.WithContextExtractors(tenant.LoggerExtractor()))
	log.InfoContext(ctx, "hello")
	assert.Contains(t, buf.String(), "company_id=9")
}
