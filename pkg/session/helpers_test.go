package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const testSecret = "test-secret-key-that-is-long-enough"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager *session.Manager
	store   session.Store
	clock   *clock
}

func newFixture(t *testing.T, store session.Store, opts ...session.Option) *fixture {
	t.Helper()

	cookieMgr, err := cookie.New([]string{testSecret})
	require.NoError(t, err)

	clk := newClock()
	if store == nil {
		store = session.NewMemoryStore(session.WithMemoryClock(clk.Now))
	}

	base := []session.Option{
		session.WithCookieManager(cookieMgr),
		session.WithStore(store),
		session.WithClock(clk.Now),
		session.WithTenantFunc(headerTenant),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return &fixture{
		manager: session.New(append(base, opts...)...),
		store:   store,
		clock:   clk,
	}
}

func headerTenant(_ context.Context, r *http.Request) (int64, error) {
	v := r.Header.Get("X-Company")
	if v == "" {
		return 0, session.ErrNoTenant
	}
	return strconv.ParseInt(v, 10, 64)
}

// client carries cookies between requests like a browser would.
type client struct {
	t         *testing.T
	f         *fixture
	companyID int64
	scheme    string
	jar       map[string]*http.Cookie
}

func (f *fixture) client(t *testing.T, companyID int64) *client {
	return &client{t: t, f: f, companyID: companyID, scheme: "https", jar: map[string]*http.Cookie{}}
}

func (c *client) request() *http.Request {
	r := httptest.NewRequest(http.MethodGet, c.scheme+"://example.com/", nil)
	r.Header.Set("X-Company", strconv.FormatInt(c.companyID, 10))
	for _, ck := range c.jar {
		r.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return r
}

func (c *client) absorb(w *httptest.ResponseRecorder) {
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.jar, ck.Name)
			continue
		}
		c.jar[ck.Name] = ck
	}
}

// do starts a session, runs fn and saves the session if fn left it active.
func (c *client) do(fn func(s *session.Session)) *session.Session {
	c.t.Helper()
	ctx := context.Background()
	w := httptest.NewRecorder()

	s, err := c.f.manager.Start(ctx, w, c.request())
	require.NoError(c.t, err)
	if fn != nil {
		fn(s)
	}
	if s.State() == session.StateActive {
		require.NoError(c.t, s.Save(ctx))
	}
	c.absorb(w)
	return s
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*session.MemoryStore
	failGet      error
	failUpdate   error
	failLanguage error
	failSection  error
}

func (s *failingStore) GetSession(ctx context.Context, companyID int64, token string) (*session.Record, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.MemoryStore.GetSession(ctx, companyID, token)
}

func (s *failingStore) UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlash bool, data []byte) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	return s.MemoryStore.UpdateSession(ctx, companyID, sessionID, hasFlash, data)
}

func (s *failingStore) UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error {
	if s.failLanguage != nil {
		return s.failLanguage
	}
	return s.MemoryStore.UpdateLanguage(ctx, companyID, sessionID, languageID)
}

func (s *failingStore) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, mode session.Mode) ([]byte, error) {
	if s.failSection != nil {
		return nil, s.failSection
	}
	return s.MemoryStore.GetNamedSection(ctx, companyID, sessionID, name, mode)
}

// recordingStore logs section calls in order.
type recordingStore struct {
	*session.MemoryStore
	mu    sync.Mutex
	calls []string
}

func (s *recordingStore) log(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *recordingStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *recordingStore) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, mode session.Mode) ([]byte, error) {
	s.log("get:" + name + ":" + mode.String())
	return s.MemoryStore.GetNamedSection(ctx, companyID, sessionID, name, mode)
}

func (s *recordingStore) UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error {
	s.log("update:" + name)
	return s.MemoryStore.UpdateNamedSection(ctx, companyID, sessionID, name, data)
}

func (s *recordingStore) DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error {
	s.log("delete:" + name)
	return s.MemoryStore.DeleteNamedSection(ctx, companyID, sessionID, name)
}

var errStoreDown = errors.New("store down")
