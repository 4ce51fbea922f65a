package mysqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/mysql"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestStore returns a store on a sqlmock connection that matches queries
// by full string equality.
func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return New(db, WithClock(func() time.Time { return testNow })), mock
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "company_id", "user_id", "profile_id", "language_id", "token", "csrf_token",
		"has_flash_message", "data", "last_request_at",
	})
}

func TestCreateTables(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(createSessions).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(createSections).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.CreateTables(context.Background()))
}

func TestStartSession(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectExec(qInsertSession).
		WithArgs(int64(3), session.AnonymousUserID, session.AnonymousProfileID, "en", "tok", "csrf", testNow).
		WillReturnResult(sqlmock.NewResult(17, 1))

	rec, err := s.StartSession(ctx, 3, "en", "tok", "csrf")
	require.NoError(t, err)
	assert.Equal(t, int64(17), rec.ID)
	assert.Equal(t, int64(3), rec.CompanyID)
	assert.Equal(t, testNow, rec.LastRequestAt)

	mock.ExpectExec(qInsertSession).
		WithArgs(int64(3), session.AnonymousUserID, session.AnonymousProfileID, "en", "tok", "csrf", testNow).
		WillReturnError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = s.StartSession(ctx, 3, "en", "tok", "csrf")
	assert.ErrorIs(t, err, session.ErrDuplicateToken)
}

func TestGetSession(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()
	prev := testNow.Add(-5 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(qLockByToken).
		WithArgs(int64(3), "tok").
		WillReturnRows(sessionRows().AddRow(17, 3, 0, 1, "en", "tok", "csrf", true, []byte(`{"a":1}`), prev))
	mock.ExpectExec(qTouch).WithArgs(testNow, int64(17)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.GetSession(ctx, 3, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(17), rec.ID)
	assert.Equal(t, prev, rec.LastRequestAt)
	assert.True(t, rec.HasFlashMessage)
	assert.Equal(t, []byte(`{"a":1}`), rec.Data)

	t.Run("not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(qLockByToken).WithArgs(int64(3), "gone").WillReturnRows(sessionRows())
		mock.ExpectRollback()

		_, err := s.GetSession(ctx, 3, "gone")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectQuery(qLockByToken).WithArgs(int64(3), "tok").WillReturnError(boom)
		mock.ExpectRollback()

		_, err := s.GetSession(ctx, 3, "tok")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestLoginLogout(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()
	prev := testNow.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(qLockByID).
		WithArgs(int64(3), int64(17)).
		WillReturnRows(sessionRows().AddRow(17, 3, 0, 1, "de", "old", "old-csrf", true, []byte("x"), prev))
	mock.ExpectExec(qLogin).
		WithArgs(int64(42), session.UserProfileID, "new", "new-csrf", testNow, int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qDropSections).WithArgs(int64(17)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	rec, err := s.Login(ctx, 3, 17, 42, "new", "new-csrf")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.UserID)
	assert.Equal(t, session.UserProfileID, rec.ProfileID)
	assert.Equal(t, "de", rec.LanguageID)
	assert.Nil(t, rec.Data)
	assert.False(t, rec.HasFlashMessage)
	assert.Equal(t, testNow, rec.LastRequestAt)

	mock.ExpectBegin()
	mock.ExpectQuery(qLockByID).
		WithArgs(int64(3), int64(17)).
		WillReturnRows(sessionRows().AddRow(17, 3, 42, 2, "de", "new", "new-csrf", false, nil, testNow))
	mock.ExpectExec(qLogout).
		WithArgs(session.AnonymousUserID, session.AnonymousProfileID, "fr", "t3", "c3", testNow, int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qDropSections).WithArgs(int64(17)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec, err = s.Logout(ctx, 3, 17, "fr", "t3", "c3")
	require.NoError(t, err)
	assert.True(t, rec.IsAnonymous())
	assert.Equal(t, "fr", rec.LanguageID)
	assert.Equal(t, "t3", rec.Token)

	mock.ExpectBegin()
	mock.ExpectQuery(qLockByID).WithArgs(int64(4), int64(17)).WillReturnRows(sessionRows())
	mock.ExpectRollback()

	_, err = s.Login(ctx, 4, 17, 42, "x", "y")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogin_ProfileError(t *testing.T) {
	boom := errors.New("no profile")
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, WithProfile(func(context.Context, int64, int64) (int64, error) { return 0, boom }))
	_, err = s.Login(context.Background(), 1, 1, 1, "t", "c")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdates(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectExec(qUpdateSession).WithArgs(true, []byte("d"), int64(3), int64(17)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateSession(ctx, 3, 17, true, []byte("d")))

	mock.ExpectExec(qUpdateLanguage).WithArgs("nl", int64(3), int64(17)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateLanguage(ctx, 3, 17, "nl"))

	mock.ExpectExec(qDestroyUser).WithArgs(int64(3), int64(42)).WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, s.DestroyAllSessionsOfUser(ctx, 3, 42))

	mock.ExpectExec(qDestroyOthers).WithArgs(int64(3), int64(17)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DestroyOtherSessionsOfUser(ctx, 3, 17))

	mock.ExpectExec(qPurge).WithArgs(testNow).WillReturnResult(sqlmock.NewResult(0, 5))
	n, err := s.PurgeExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	boom := errors.New("boom")
	mock.ExpectExec(qUpdateSession).WithArgs(false, []byte("z"), int64(3), int64(17)).WillReturnError(boom)
	assert.ErrorIs(t, s.UpdateSession(ctx, 3, 17, false, []byte("z")), boom)
}

func TestSections(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		mode  session.Mode
		query string
	}{
		{session.ModeExclusive, qSelectSection + " FOR UPDATE"},
		{session.ModeShared, qSelectSection + " LOCK IN SHARE MODE"},
		{session.ModeReadOnly, qSelectSection},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			mock.ExpectQuery(tt.query).
				WithArgs(int64(3), int64(17), "cart").
				WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("v")))

			data, err := s.GetNamedSection(ctx, 3, 17, "cart", tt.mode)
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), data)
		})
	}

	mock.ExpectQuery(qSelectSection).
		WithArgs(int64(3), int64(17), "none").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	_, err := s.GetNamedSection(ctx, 3, 17, "none", session.ModeReadOnly)
	assert.ErrorIs(t, err, session.ErrSectionNotFound)

	mock.ExpectExec(qUpsertSection).
		WithArgs("cart", []byte{}, testNow, int64(3), int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateNamedSection(ctx, 3, 17, "cart", nil))

	mock.ExpectExec(qDeleteSection).WithArgs(int64(3), int64(17), "cart").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.DeleteNamedSection(ctx, 3, 17, "cart"))
}

func TestRequestTransaction(t *testing.T) {
	s, mock := newTestStore(t)

	// Inside a request transaction the store neither begins nor commits.
	mock.ExpectBegin()
	mock.ExpectQuery(qSelectSection+" FOR UPDATE").
		WithArgs(int64(3), int64(17), "cart").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("v")))
	mock.ExpectQuery(qLockByToken).
		WithArgs(int64(3), "tok").
		WillReturnRows(sessionRows().AddRow(17, 3, 0, 1, "en", "tok", "csrf", false, nil, testNow))
	mock.ExpectExec(qTouch).WithArgs(testNow, int64(17)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := mysql.InTx(context.Background(), s.db, func(ctx context.Context) error {
		if _, err := s.GetNamedSection(ctx, 3, 17, "cart", session.ModeExclusive); err != nil {
			return err
		}
		_, err := s.GetSession(ctx, 3, "tok")
		return err
	})
	require.NoError(t, err)
}
