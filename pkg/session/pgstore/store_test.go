package pgstore_test

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/pg"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/session/pgstore"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

var companySeq atomic.Int64

// setup connects to the database named by PG_CONN_URL and migrates it.
// Each test works in its own company so tests can share the tables.
func setup(t *testing.T) (*pgstore.Store, *pgxpool.Pool, int64) {
	t.Helper()

	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}

	ctx := t.Context()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     4,
		RetryAttempts:    1,
		MigrationsTable:  "session_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, pgstore.Migrations, cfg, slog.New(slog.DiscardHandler)))

	companyID := time.Now().UnixNano()%1_000_000_000 + companySeq.Add(1)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM sessions WHERE company_id = $1`, companyID)
	})

	return pgstore.New(pool), pool, companyID
}

var tokens = token.NewGenerator(16)

func tok(string) string {
	t, err := tokens.Generate()
	if err != nil {
		panic(err)
	}
	return t
}

func TestStore_Lifecycle(t *testing.T) {
	store, _, cmp := setup(t)
	ctx := t.Context()

	rec, err := store.StartSession(ctx, cmp, "en", tok("a"), tok("c"))
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	assert.Equal(t, session.AnonymousUserID, rec.UserID)
	assert.Equal(t, session.AnonymousProfileID, rec.ProfileID)

	got, err := store.GetSession(ctx, cmp, rec.Token)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "en", got.LanguageID)

	_, err = store.GetSession(ctx, cmp+1, rec.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	require.NoError(t, store.UpdateSession(ctx, cmp, rec.ID, true, []byte(`{"k":1}`)))
	require.NoError(t, store.UpdateNamedSection(ctx, cmp, rec.ID, "cart", []byte("x")))

	in, err := store.Login(ctx, cmp, rec.ID, 42, tok("b"), tok("d"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), in.UserID)
	assert.Equal(t, session.UserProfileID, in.ProfileID)
	assert.Nil(t, in.Data)
	assert.False(t, in.HasFlashMessage)

	_, err = store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeReadOnly)
	assert.ErrorIs(t, err, session.ErrSectionNotFound)

	out, err := store.Logout(ctx, cmp, rec.ID, "de", tok("e"), tok("f"))
	require.NoError(t, err)
	assert.Equal(t, session.AnonymousUserID, out.UserID)
	assert.Equal(t, "de", out.LanguageID)

	_, err = store.GetSession(ctx, cmp, in.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = store.Login(ctx, cmp, rec.ID+1_000_000, 1, tok("g"), tok("h"))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStore_GetSessionTouches(t *testing.T) {
	store, pool, cmp := setup(t)
	ctx := t.Context()

	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	now := start
	clocked := pgstore.New(pool, pgstore.WithClock(func() time.Time { return now }))

	rec, err := clocked.StartSession(ctx, cmp, "en", tok("t"), tok("c"))
	require.NoError(t, err)

	now = start.Add(5 * time.Minute)
	got, err := clocked.GetSession(ctx, cmp, rec.Token)
	require.NoError(t, err)
	assert.True(t, got.LastRequestAt.Equal(start))

	now = start.Add(7 * time.Minute)
	got, err = store.GetSession(ctx, cmp, rec.Token)
	require.NoError(t, err)
	assert.True(t, got.LastRequestAt.Equal(start.Add(5*time.Minute)))
}

func TestStore_Sections(t *testing.T) {
	store, _, cmp := setup(t)
	ctx := t.Context()

	rec, err := store.StartSession(ctx, cmp, "en", tok("s"), tok("c"))
	require.NoError(t, err)

	_, err = store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeExclusive)
	assert.ErrorIs(t, err, session.ErrSectionNotFound)

	require.NoError(t, store.UpdateNamedSection(ctx, cmp, rec.ID, "cart", []byte("one")))
	require.NoError(t, store.UpdateNamedSection(ctx, cmp, rec.ID, "cart", []byte("two")))

	for _, mode := range []session.Mode{session.ModeExclusive, session.ModeShared, session.ModeReadOnly} {
		data, err := store.GetNamedSection(ctx, cmp, rec.ID, "cart", mode)
		require.NoError(t, err, mode.String())
		assert.Equal(t, []byte("two"), data)
	}

	// Another company cannot see or write the section.
	_, err = store.GetNamedSection(ctx, cmp+1, rec.ID, "cart", session.ModeReadOnly)
	assert.ErrorIs(t, err, session.ErrSectionNotFound)
	require.NoError(t, store.UpdateNamedSection(ctx, cmp+1, rec.ID, "cart", []byte("evil")))
	require.NoError(t, store.DeleteNamedSection(ctx, cmp+1, rec.ID, "cart"))

	data, err := store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeReadOnly)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	require.NoError(t, store.DeleteNamedSection(ctx, cmp, rec.ID, "cart"))
	require.NoError(t, store.DeleteNamedSection(ctx, cmp, rec.ID, "cart"))
	_, err = store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeReadOnly)
	assert.ErrorIs(t, err, session.ErrSectionNotFound)
}

func TestStore_ExclusiveLockHeldByTransaction(t *testing.T) {
	store, pool, cmp := setup(t)
	ctx := t.Context()

	rec, err := store.StartSession(ctx, cmp, "en", tok("l"), tok("c"))
	require.NoError(t, err)
	require.NoError(t, store.UpdateNamedSection(ctx, cmp, rec.ID, "cart", []byte("v1")))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(context.Background()) }()

	_, err = store.GetNamedSection(pg.WithTx(ctx, tx), cmp, rec.ID, "cart", session.ModeExclusive)
	require.NoError(t, err)

	// A second exclusive reader must wait for the first transaction.
	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err = pg.InTx(waitCtx, pool, func(ctx context.Context) error {
		_, err := store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeExclusive)
		return err
	})
	require.Error(t, err)

	// Read-only access takes no lock.
	data, err := store.GetNamedSection(ctx, cmp, rec.ID, "cart", session.ModeReadOnly)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)
}

func TestStore_Destroy(t *testing.T) {
	store, pool, cmp := setup(t)
	ctx := t.Context()

	var ids []int64
	for range 3 {
		rec, err := store.StartSession(ctx, cmp, "en", tok("d"), tok("c"))
		require.NoError(t, err)
		_, err = store.Login(ctx, cmp, rec.ID, 7, tok("u"), tok("c"))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	require.NoError(t, store.DestroyOtherSessionsOfUser(ctx, cmp, ids[0]))

	count := func() int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE company_id = $1`, cmp).Scan(&n))
		return n
	}
	assert.Equal(t, 1, count())

	require.NoError(t, store.DestroyAllSessionsOfUser(ctx, cmp, 7))
	assert.Zero(t, count())
}

func TestStore_PurgeExpired(t *testing.T) {
	_, pool, cmp := setup(t)
	ctx := t.Context()

	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	stale := pgstore.New(pool, pgstore.WithClock(func() time.Time { return old }))
	_, err := stale.StartSession(ctx, cmp, "en", tok("p"), tok("c"))
	require.NoError(t, err)

	n, err := stale.PurgeExpired(ctx, old.Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestStore_DuplicateToken(t *testing.T) {
	store, _, cmp := setup(t)
	ctx := t.Context()

	token := tok("dup")
	_, err := store.StartSession(ctx, cmp, "en", token, tok("c"))
	require.NoError(t, err)
	_, err = store.StartSession(ctx, cmp, "en", token, tok("c"))
	assert.ErrorIs(t, err, session.ErrDuplicateToken)
}
