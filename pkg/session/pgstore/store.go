// Package pgstore implements session.Store on PostgreSQL through pgx.
//
// Every query runs on the transaction bound to the context by pg.WithTx when
// there is one, and on the pool otherwise. Section reads in exclusive mode use
// SELECT ... FOR UPDATE and shared mode uses FOR SHARE, so the locks last until
// the request transaction commits. Without a request transaction they are
// released as soon as the statement completes.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionkit/pkg/pg"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const sessionColumns = `id, company_id, user_id, profile_id, language_id, token, csrf_token,
	has_flash_message, data, last_request_at`

// Store is a PostgreSQL session.Store.
type Store struct {
	pool    *pgxpool.Pool
	profile session.ProfileFunc
	now     func() time.Time
}

var _ session.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithProfile sets how profile ids are derived for new and transitioned sessions.
func WithProfile(fn session.ProfileFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.profile = fn
		}
	}
}

// WithClock overrides the time source for last_request_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store backed by pool. The schema is expected to be migrated
// with Migrations.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:    pool,
		profile: session.DefaultProfile,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) conn(ctx context.Context) pg.DBTX {
	return pg.Conn(ctx, s.pool)
}

func (s *Store) StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	rec := &session.Record{
		CompanyID:     companyID,
		Token:         token,
		CSRFToken:     csrfToken,
		UserID:        session.AnonymousUserID,
		LanguageID:    languageID,
		ProfileID:     profileID,
		LastRequestAt: s.now().UTC(),
	}

	err = s.conn(ctx).QueryRow(ctx, `
		INSERT INTO sessions (company_id, user_id, profile_id, language_id, token, csrf_token, last_request_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.CompanyID, rec.UserID, rec.ProfileID, rec.LanguageID, rec.Token, rec.CSRFToken, rec.LastRequestAt,
	).Scan(&rec.ID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, errors.Join(session.ErrDuplicateToken, err)
		}
		return nil, fmt.Errorf("pgstore: start session: %w", err)
	}
	return rec, nil
}

// GetSession locks the row, reads it and stamps the new last request time in one statement.
func (s *Store) GetSession(ctx context.Context, companyID int64, token string) (*session.Record, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		WITH prev AS (
			SELECT `+sessionColumns+`
			FROM sessions
			WHERE company_id = $1 AND token = $2
			FOR UPDATE
		)
		UPDATE sessions AS s
		SET last_request_at = $3
		FROM prev
		WHERE s.id = prev.id
		RETURNING prev.id, prev.company_id, prev.user_id, prev.profile_id, prev.language_id,
			prev.token, prev.csrf_token, prev.has_flash_message, prev.data, prev.last_request_at`,
		companyID, token, s.now().UTC(),
	)

	rec, err := scanRecord(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("pgstore: get session: %w", err)
	}
	return rec, nil
}

func (s *Store) Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}

	var rec *session.Record
	err = pg.InTx(ctx, s.pool, func(ctx context.Context) error {
		row := s.conn(ctx).QueryRow(ctx, `
			UPDATE sessions
			SET user_id = $3, profile_id = $4, token = $5, csrf_token = $6,
				has_flash_message = FALSE, data = NULL, last_request_at = $7
			WHERE company_id = $1 AND id = $2
			RETURNING `+sessionColumns,
			companyID, sessionID, userID, profileID, token, csrfToken, s.now().UTC(),
		)
		var err error
		if rec, err = scanRecord(row); err != nil {
			return err
		}
		return s.dropSections(ctx, sessionID)
	})
	return rec, s.transitionErr("login", err)
}

func (s *Store) Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	var rec *session.Record
	err = pg.InTx(ctx, s.pool, func(ctx context.Context) error {
		row := s.conn(ctx).QueryRow(ctx, `
			UPDATE sessions
			SET user_id = $3, profile_id = $4, language_id = $5, token = $6, csrf_token = $7,
				has_flash_message = FALSE, data = NULL, last_request_at = $8
			WHERE company_id = $1 AND id = $2
			RETURNING `+sessionColumns,
			companyID, sessionID, session.AnonymousUserID, profileID, languageID, token, csrfToken, s.now().UTC(),
		)
		var err error
		if rec, err = scanRecord(row); err != nil {
			return err
		}
		return s.dropSections(ctx, sessionID)
	})
	return rec, s.transitionErr("logout", err)
}

func (s *Store) transitionErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNotFoundError(err):
		return session.ErrSessionNotFound
	case pg.IsDuplicateKeyError(err):
		return errors.Join(session.ErrDuplicateToken, err)
	default:
		return fmt.Errorf("pgstore: %s: %w", op, err)
	}
}

func (s *Store) UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE sessions SET has_flash_message = $3, data = $4
		WHERE company_id = $1 AND id = $2`,
		companyID, sessionID, hasFlashMessage, data,
	)
	if err != nil {
		return fmt.Errorf("pgstore: update session: %w", err)
	}
	return nil
}

func (s *Store) UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error {
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE sessions SET language_id = $3 WHERE company_id = $1 AND id = $2`,
		companyID, sessionID, languageID,
	)
	if err != nil {
		return fmt.Errorf("pgstore: update language: %w", err)
	}
	return nil
}

// DestroyAllSessionsOfUser deletes the user's sessions. Sections go with them through ON DELETE CASCADE.
func (s *Store) DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error {
	_, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM sessions WHERE company_id = $1 AND user_id = $2`,
		companyID, userID,
	)
	if err != nil {
		return fmt.Errorf("pgstore: destroy sessions of user: %w", err)
	}
	return nil
}

func (s *Store) DestroyOtherSessionsOfUser(ctx context.Context, companyID, sessionID int64) error {
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM sessions
		WHERE company_id = $1
			AND id <> $2
			AND user_id = (SELECT user_id FROM sessions WHERE company_id = $1 AND id = $2)`,
		companyID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("pgstore: destroy other sessions: %w", err)
	}
	return nil
}

func (s *Store) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, mode session.Mode) ([]byte, error) {
	var data []byte
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT ss.data
		FROM session_sections AS ss
		JOIN sessions AS s ON s.id = ss.session_id
		WHERE s.company_id = $1 AND ss.session_id = $2 AND ss.name = $3
		`+lockClause(mode),
		companyID, sessionID, name,
	).Scan(&data)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, session.ErrSectionNotFound
		}
		return nil, fmt.Errorf("pgstore: get section %q: %w", name, err)
	}
	return data, nil
}

// lockClause maps a section mode onto the row lock it takes.
func lockClause(mode session.Mode) string {
	switch mode {
	case session.ModeExclusive:
		return "FOR UPDATE OF ss"
	case session.ModeShared:
		return "FOR SHARE OF ss"
	default:
		return ""
	}
}

func (s *Store) UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO session_sections (session_id, name, data, updated_at)
		SELECT id, $3, $4, $5 FROM sessions WHERE company_id = $1 AND id = $2
		ON CONFLICT (session_id, name) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		companyID, sessionID, name, data, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("pgstore: update section %q: %w", name, err)
	}
	return nil
}

func (s *Store) DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM session_sections AS ss
		USING sessions AS s
		WHERE s.id = ss.session_id AND s.company_id = $1 AND ss.session_id = $2 AND ss.name = $3`,
		companyID, sessionID, name,
	)
	if err != nil {
		return fmt.Errorf("pgstore: delete section %q: %w", name, err)
	}
	return nil
}

// PurgeExpired deletes sessions idle since before cutoff and reports how many went.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE last_request_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) dropSections(ctx context.Context, sessionID int64) error {
	_, err := s.conn(ctx).Exec(ctx, `DELETE FROM session_sections WHERE session_id = $1`, sessionID)
	return err
}

func scanRecord(row pgx.Row) (*session.Record, error) {
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
