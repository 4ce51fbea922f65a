package pgstore

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

func TestLockClause(t *testing.T) {
	assert.Equal(t, "FOR UPDATE OF ss", lockClause(session.ModeExclusive))
	assert.Equal(t, "FOR SHARE OF ss", lockClause(session.ModeShared))
	assert.Empty(t, lockClause(session.ModeReadOnly))
}

// fakeRow fills Scan destinations in column order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unexpected destination type")
		}
	}
	return nil
}

var _ pgx.Row = fakeRow{}

func TestScanRecord(t *testing.T) {
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	rec, err := scanRecord(fakeRow{values: []any{
		int64(5), int64(1), int64(42), int64(2), "de",
		"tok", "csrf", true, []byte(`{"a":1}`), at,
	}})
	require.NoError(t, err)
	assert.Equal(t, &session.Record{
		ID:              5,
		CompanyID:       1,
		UserID:          42,
		ProfileID:       2,
		LanguageID:      "de",
		Token:           "tok",
		CSRFToken:       "csrf",
		HasFlashMessage: true,
		Data:            []byte(`{"a":1}`),
		LastRequestAt:   at,
	}, rec)

	_, err = scanRecord(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestSessionColumnsMatchScan(t *testing.T) {
	var cols []string
	for c := range strings.SplitSeq(sessionColumns, ",") {
		cols = append(cols, strings.TrimSpace(c))
	}
	assert.Equal(t, []string{
		"id", "company_id", "user_id", "profile_id", "language_id",
		"token", "csrf_token", "has_flash_message", "data", "last_request_at",
	}, cols)
}

func TestTransitionErr(t *testing.T) {
	s := New(nil)
	assert.NoError(t, s.transitionErr("login", nil))
	assert.ErrorIs(t, s.transitionErr("login", pgx.ErrNoRows), session.ErrSessionNotFound)

	dup := s.transitionErr("login", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, dup, session.ErrDuplicateToken)

	err := s.transitionErr("logout", errors.New("conn reset"))
	assert.ErrorContains(t, err, "pgstore: logout")
}
