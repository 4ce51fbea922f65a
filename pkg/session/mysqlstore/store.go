// Package mysqlstore implements session.Store on MySQL (InnoDB) through database/sql.
//
// Exclusive section reads use SELECT ... FOR UPDATE and shared reads use
// LOCK IN SHARE MODE. The locks last until the transaction bound to the
// context with mysql.WithTx ends.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/mysql"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const defaultOpTimeout = 30 * time.Second

// Store is a MySQL session.Store.
type Store struct {
	db        *sql.DB
	profile   session.ProfileFunc
	now       func() time.Time
	opTimeout time.Duration
}

var _ session.Store = (*Store)(nil)

type Option func(*Store)

func WithProfile(fn session.ProfileFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.profile = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOpTimeout bounds every single store call. Zero disables the bound.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) { s.opTimeout = d }
}

// New returns a Store on db. Call CreateTables once before use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		profile:   session.DefaultProfile,
		now:       time.Now,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTables creates the sessions and session_sections tables when missing.
func (s *Store) CreateTables(ctx context.Context) error {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	for _, q := range []string{createSessions, createSections} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("mysqlstore: create tables: %w", err)
		}
	}
	return nil
}

func (s *Store) ctxForOp(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) conn(ctx context.Context) mysql.DBTX {
	return mysql.Conn(ctx, s.db)
}

func (s *Store) StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	rec := &session.Record{
		CompanyID:     companyID,
		Token:         token,
		CSRFToken:     csrfToken,
		UserID:        session.AnonymousUserID,
		LanguageID:    languageID,
		ProfileID:     profileID,
		LastRequestAt: s.now().UTC(),
	}
	res, err := s.conn(ctx).ExecContext(ctx, qInsertSession,
		rec.CompanyID, rec.UserID, rec.ProfileID, rec.LanguageID, rec.Token, rec.CSRFToken, rec.LastRequestAt)
	if err != nil {
		if mysql.IsDuplicateKeyError(err) {
			return nil, errors.Join(session.ErrDuplicateToken, err)
		}
		return nil, fmt.Errorf("mysqlstore: start session: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("mysqlstore: start session: %w", err)
	}
	return rec, nil
}

// GetSession locks the row, returns it as read and stamps the new last request time.
func (s *Store) GetSession(ctx context.Context, companyID int64, token string) (*session.Record, error) {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	var rec *session.Record
	err := mysql.InTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		if rec, err = scanRecord(s.conn(ctx).QueryRowContext(ctx, qLockByToken, companyID, token)); err != nil {
			return err
		}
		_, err = s.conn(ctx).ExecContext(ctx, qTouch, s.now().UTC(), rec.ID)
		return err
	})
	if err != nil {
		if mysql.IsNotFoundError(err) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("mysqlstore: get session: %w", err)
	}
	return rec, nil
}

func (s *Store) Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, "login", companyID, sessionID, func(ctx context.Context, rec *session.Record) error {
		rec.UserID = userID
		rec.ProfileID = profileID
		rec.Token = token
		rec.CSRFToken = csrfToken
		_, err := s.conn(ctx).ExecContext(ctx, qLogin,
			rec.UserID, rec.ProfileID, rec.Token, rec.CSRFToken, rec.LastRequestAt, rec.ID)
		return err
	})
}

func (s *Store) Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, "logout", companyID, sessionID, func(ctx context.Context, rec *session.Record) error {
		rec.UserID = session.AnonymousUserID
		rec.ProfileID = profileID
		rec.LanguageID = languageID
		rec.Token = token
		rec.CSRFToken = csrfToken
		_, err := s.conn(ctx).ExecContext(ctx, qLogout,
			rec.UserID, rec.ProfileID, rec.LanguageID, rec.Token, rec.CSRFToken, rec.LastRequestAt, rec.ID)
		return err
	})
}

// transition locks the session row, lets apply rewrite it and drops its sections.
// Data and the flash flag are always cleared.
func (s *Store) transition(ctx context.Context, op string, companyID, sessionID int64, apply func(context.Context, *session.Record) error) (*session.Record, error) {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	var rec *session.Record
	err := mysql.InTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		if rec, err = scanRecord(s.conn(ctx).QueryRowContext(ctx, qLockByID, companyID, sessionID)); err != nil {
			return err
		}
		rec.Data = nil
		rec.HasFlashMessage = false
		rec.LastRequestAt = s.now().UTC()
		if err := apply(ctx, rec); err != nil {
			return err
		}
		_, err = s.conn(ctx).ExecContext(ctx, qDropSections, rec.ID)
		return err
	})

	switch {
	case err == nil:
		return rec, nil
	case mysql.IsNotFoundError(err):
		return nil, session.ErrSessionNotFound
	case mysql.IsDuplicateKeyError(err):
		return nil, errors.Join(session.ErrDuplicateToken, err)
	default:
		return nil, fmt.Errorf("mysqlstore: %s: %w", op, err)
	}
}

func (s *Store) UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error {
	return s.exec(ctx, "update session", qUpdateSession, hasFlashMessage, data, companyID, sessionID)
}

func (s *Store) UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error {
	return s.exec(ctx, "update language", qUpdateLanguage, languageID, companyID, sessionID)
}

func (s *Store) DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error {
	return s.exec(ctx, "destroy sessions of user", qDestroyUser, companyID, userID)
}

func (s *Store) DestroyOtherSessionsOfUser(ctx context.Context, companyID, sessionID int64) error {
	return s.exec(ctx, "destroy other sessions", qDestroyOthers, companyID, sessionID)
}

func (s *Store) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, mode session.Mode) ([]byte, error) {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	var data []byte
	err := s.conn(ctx).QueryRowContext(ctx, sectionQuery(mode), companyID, sessionID, name).Scan(&data)
	if err != nil {
		if mysql.IsNotFoundError(err) {
			return nil, session.ErrSectionNotFound
		}
		return nil, fmt.Errorf("mysqlstore: get section %q: %w", name, err)
	}
	return data, nil
}

func sectionQuery(mode session.Mode) string {
	switch mode {
	case session.ModeExclusive:
		return qSelectSection + " FOR UPDATE"
	case session.ModeShared:
		return qSelectSection + " LOCK IN SHARE MODE"
	default:
		return qSelectSection
	}
}

func (s *Store) UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	return s.exec(ctx, "update section", qUpsertSection, name, data, s.now().UTC(), companyID, sessionID)
}

func (s *Store) DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error {
	return s.exec(ctx, "delete section", qDeleteSection, companyID, sessionID, name)
}

// PurgeExpired deletes sessions idle since before cutoff.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	res, err := s.conn(ctx).ExecContext(ctx, qPurge, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("mysqlstore: purge expired: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) exec(ctx context.Context, op, q string, args ...any) error {
	ctx, cancel := s.ctxForOp(ctx)
	defer cancel()

	if _, err := s.conn(ctx).ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("mysqlstore: %s: %w", op, err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*session.Record, error) {
	var rec session.Record
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.UserID, &rec.ProfileID, &rec.LanguageID,
		&rec.Token, &rec.CSRFToken, &rec.HasFlashMessage, &rec.Data, &rec.LastRequestAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
