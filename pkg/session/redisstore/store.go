// Package redisstore implements session.Store on Redis.
//
// Layout, with prefix P:
//
//	P:seq                 session id counter
//	P:s:{id}              hash with the session row
//	P:t:{token}           session id for a token
//	P:u:{company}:{user}  set of session ids of a user
//	P:n:{id}              hash of named sections, field = section name
//
// Session keys expire after the configured TTL, which is refreshed on every
// GetSession. Redis has no row locks, so every section mode reads the latest
// written value and concurrent writers race. Use the Postgres or MySQL store
// when exclusive sections must serialize requests.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const (
	defaultPrefix = "session"
	defaultTTL    = 24 * time.Hour
)

const (
	fCompanyID     = "company_id"
	fUserID        = "user_id"
	fProfileID     = "profile_id"
	fLanguageID    = "language_id"
	fToken         = "token"
	fCSRFToken     = "csrf_token"
	fFlash         = "has_flash_message"
	fData          = "data"
	fLastRequestAt = "last_request_at"
)

// Store is a Redis session.Store.
type Store struct {
	rdb     redis.UniversalClient
	prefix  string
	ttl     time.Duration
	profile session.ProfileFunc
	now     func() time.Time
}

var _ session.Store = (*Store)(nil)

type Option func(*Store)

// WithPrefix namespaces every key. Defaults to "session".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets how long an idle session survives in Redis. Keep it above the
// session timeout so expired sessions are restarted rather than re-created.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

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

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:     rdb,
		prefix:  defaultPrefix,
		ttl:     defaultTTL,
		profile: session.DefaultProfile,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) seqKey() string               { return s.prefix + ":seq" }
func (s *Store) sessionKey(id int64) string   { return s.prefix + ":s:" + strconv.FormatInt(id, 10) }
func (s *Store) tokenKey(token string) string { return s.prefix + ":t:" + token }
func (s *Store) sectionsKey(id int64) string  { return s.prefix + ":n:" + strconv.FormatInt(id, 10) }

func (s *Store) userKey(companyID, userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(companyID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func (s *Store) StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: start session: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, s.tokenKey(token), id, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: start session: %w", err)
	}
	if !ok {
		return nil, session.ErrDuplicateToken
	}

	rec := &session.Record{
		CompanyID:     companyID,
		ID:            id,
		Token:         token,
		CSRFToken:     csrfToken,
		UserID:        session.AnonymousUserID,
		LanguageID:    languageID,
		ProfileID:     profileID,
		LastRequestAt: s.now().UTC(),
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(id), encode(rec))
		pipe.Expire(ctx, s.sessionKey(id), s.ttl)
		pipe.SAdd(ctx, s.userKey(companyID, rec.UserID), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisstore: start session: %w", err)
	}
	return rec, nil
}

// GetSession returns the stored row and then stamps the new last request time
// and refreshes the TTL of every key of the session.
func (s *Store) GetSession(ctx context.Context, companyID int64, token string) (*session.Record, error) {
	id, err := s.rdb.Get(ctx, s.tokenKey(token)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redisstore: get session: %w", err)
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CompanyID != companyID || rec.Token != token {
		return nil, session.ErrSessionNotFound
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(id), fLastRequestAt, s.now().UTC().UnixNano())
		pipe.Expire(ctx, s.sessionKey(id), s.ttl)
		pipe.Expire(ctx, s.tokenKey(token), s.ttl)
		pipe.Expire(ctx, s.sectionsKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisstore: get session: %w", err)
	}
	return rec, nil
}

func (s *Store) Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "login", companyID, sessionID, token, func(rec *session.Record) {
		rec.UserID = userID
		rec.ProfileID = profileID
		rec.Token = token
		rec.CSRFToken = csrfToken
	})
}

func (s *Store) Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, "logout", companyID, sessionID, token, func(rec *session.Record) {
		rec.UserID = session.AnonymousUserID
		rec.ProfileID = profileID
		rec.LanguageID = languageID
		rec.Token = token
		rec.CSRFToken = csrfToken
	})
}

// transition rewrites the session under WATCH so a concurrent change of the
// row aborts the swap instead of leaving the token index inconsistent.
func (s *Store) transition(ctx context.Context, op string, companyID, sessionID int64, newToken string, apply func(*session.Record)) (*session.Record, error) {
	key := s.sessionKey(sessionID)

	var out *session.Record
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.loadWith(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if rec == nil || rec.CompanyID != companyID {
			return session.ErrSessionNotFound
		}

		taken, err := tx.Exists(ctx, s.tokenKey(newToken)).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return session.ErrDuplicateToken
		}

		oldToken, oldUser := rec.Token, rec.UserID
		apply(rec)
		rec.Data = nil
		rec.HasFlashMessage = false
		rec.LastRequestAt = s.now().UTC()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.tokenKey(oldToken), s.sectionsKey(sessionID))
			pipe.Set(ctx, s.tokenKey(rec.Token), sessionID, s.ttl)
			pipe.HSet(ctx, key, encode(rec))
			pipe.Expire(ctx, key, s.ttl)
			if oldUser != rec.UserID {
				pipe.SRem(ctx, s.userKey(companyID, oldUser), sessionID)
				pipe.SAdd(ctx, s.userKey(companyID, rec.UserID), sessionID)
			}
			return nil
		})
		out = rec
		return err
	}, key)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrDuplicateToken):
		return nil, err
	default:
		return nil, fmt.Errorf("redisstore: %s: %w", op, err)
	}
}

func (s *Store) UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error {
	ok, err := s.owns(ctx, companyID, sessionID)
	if err != nil || !ok {
		return err
	}
	flash := 0
	if hasFlashMessage {
		flash = 1
	}
	if err := s.rdb.HSet(ctx, s.sessionKey(sessionID), fFlash, flash, fData, data).Err(); err != nil {
		return fmt.Errorf("redisstore: update session: %w", err)
	}
	return nil
}

func (s *Store) UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error {
	ok, err := s.owns(ctx, companyID, sessionID)
	if err != nil || !ok {
		return err
	}
	if err := s.rdb.HSet(ctx, s.sessionKey(sessionID), fLanguageID, languageID).Err(); err != nil {
		return fmt.Errorf("redisstore: update language: %w", err)
	}
	return nil
}

func (s *Store) DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error {
	return s.destroyUser(ctx, companyID, userID, 0)
}

func (s *Store) DestroyOtherSessionsOfUser(ctx context.Context, companyID, sessionID int64) error {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec == nil || rec.CompanyID != companyID {
		return nil
	}
	return s.destroyUser(ctx, companyID, rec.UserID, sessionID)
}

// destroyUser deletes every session in the user's set except keep.
// Members whose hash already expired are dropped from the set as well.
func (s *Store) destroyUser(ctx context.Context, companyID, userID, keep int64) error {
	userKey := s.userKey(companyID, userID)
	members, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("redisstore: destroy sessions: %w", err)
	}

	pipe := s.rdb.Pipeline()
	tokens := make(map[int64]*redis.StringCmd, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil || id == keep {
			continue
		}
		tokens[id] = pipe.HGet(ctx, s.sessionKey(id), fToken)
	}
	if len(tokens) == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: destroy sessions: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, cmd := range tokens {
			keys := []string{s.sessionKey(id), s.sectionsKey(id)}
			if tok, err := cmd.Result(); err == nil {
				keys = append(keys, s.tokenKey(tok))
			}
			pipe.Del(ctx, keys...)
			pipe.SRem(ctx, userKey, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: destroy sessions: %w", err)
	}
	return nil
}

// GetNamedSection ignores mode: Redis takes no locks.
func (s *Store) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, _ session.Mode) ([]byte, error) {
	ok, err := s.owns(ctx, companyID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, session.ErrSectionNotFound
	}

	data, err := s.rdb.HGet(ctx, s.sectionsKey(sessionID), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrSectionNotFound
		}
		return nil, fmt.Errorf("redisstore: get section %q: %w", name, err)
	}
	return data, nil
}

func (s *Store) UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error {
	ok, err := s.owns(ctx, companyID, sessionID)
	if err != nil || !ok {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.sectionsKey(sessionID), name, data)
		pipe.Expire(ctx, s.sectionsKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: update section %q: %w", name, err)
	}
	return nil
}

func (s *Store) DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error {
	ok, err := s.owns(ctx, companyID, sessionID)
	if err != nil || !ok {
		return err
	}
	if err := s.rdb.HDel(ctx, s.sectionsKey(sessionID), name).Err(); err != nil {
		return fmt.Errorf("redisstore: delete section %q: %w", name, err)
	}
	return nil
}

func (s *Store) owns(ctx context.Context, companyID, sessionID int64) (bool, error) {
	v, err := s.rdb.HGet(ctx, s.sessionKey(sessionID), fCompanyID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redisstore: lookup session: %w", err)
	}
	return v == companyID, nil
}

func (s *Store) load(ctx context.Context, id int64) (*session.Record, error) {
	return s.loadWith(ctx, s.rdb, id)
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// loadWith reads the session hash. A missing hash yields nil without error.
func (s *Store) loadWith(ctx context.Context, c hashReader, id int64) (*session.Record, error) {
	fields, err := c.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec, err := decode(id, fields)
	if err != nil {
		return nil, fmt.Errorf("redisstore: decode session %d: %w", id, err)
	}
	return rec, nil
}
