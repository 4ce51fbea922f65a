package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

// Session is the per-request view of one session row. It is not safe for
// concurrent use; exactly one Session exists per request.
type Session struct {
	m        *Manager
	w        http.ResponseWriter
	r        *http.Request
	state    State
	rec      *Record
	values   map[string]any
	sections *sectionCache

	// derived from rec.LanguageID on first use
	tag    language.Tag
	tagSet bool
}

// Start resolves the session for the request: resume, restart on expiry, or
// mint a new one. It must be called exactly once.
func (s *Session) Start(ctx context.Context) error {
	to, err := next(s.state, eventStart)
	if err != nil {
		return err
	}

	companyID, err := s.m.tenantFunc(ctx, s.r)
	if err != nil {
		return err
	}

	if s.m.transientFunc != nil && s.m.transientFunc(s.r) {
		s.replace(&Record{
			CompanyID:     companyID,
			UserID:        AnonymousUserID,
			ProfileID:     AnonymousProfileID,
			LanguageID:    s.m.language(s.r),
			LastRequestAt: s.m.now(),
		})
		s.state = to
		return nil
	}

	rec, err := s.resolve(ctx, companyID)
	if err != nil {
		return err
	}

	s.replace(rec)
	s.state = to
	return s.writeTokens()
}

func (s *Session) resolve(ctx context.Context, companyID int64) (*Record, error) {
	log := s.m.logger

	raw, err := s.m.transport.GetToken(s.r)
	if err != nil || !token.Valid(raw) {
		return s.mint(ctx, companyID)
	}

	rec, err := s.m.store.GetSession(ctx, companyID, raw)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		log.DebugContext(ctx, "unknown session token, starting a new session", logger.CompanyID(companyID))
		return s.mint(ctx, companyID)
	case err != nil:
		return nil, fmt.Errorf("session: get session: %w", err)
	}

	if !s.m.config.Expired(rec.LastRequestAt, s.m.now()) {
		return rec, nil
	}

	tokens, err := s.m.newTokens()
	if err != nil {
		return nil, err
	}
	restarted, err := s.m.store.Logout(ctx, companyID, rec.ID, s.m.language(s.r), tokens.Session, tokens.CSRF)
	if err != nil {
		return nil, fmt.Errorf("session: restart session: %w", err)
	}
	log.InfoContext(ctx, "session expired, restarted",
		logger.CompanyID(companyID),
		logger.SessionID(rec.ID),
		logger.Duration(s.m.now().Sub(rec.LastRequestAt)),
	)
	return restarted, nil
}

func (s *Session) mint(ctx context.Context, companyID int64) (*Record, error) {
	tokens, err := s.m.newTokens()
	if err != nil {
		return nil, err
	}
	rec, err := s.m.store.StartSession(ctx, companyID, s.m.language(s.r), tokens.Session, tokens.CSRF)
	if err != nil {
		return nil, fmt.Errorf("session: start session: %w", err)
	}
	return rec, nil
}

// Login moves the session to userID with fresh tokens. The values bag and all
// named sections are dropped. No-op on transient sessions.
func (s *Session) Login(ctx context.Context, userID int64) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	if s.rec.IsTransient() {
		return nil
	}

	tokens, err := s.m.newTokens()
	if err != nil {
		return err
	}
	rec, err := s.m.store.Login(ctx, s.rec.CompanyID, s.rec.ID, userID, tokens.Session, tokens.CSRF)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}

	s.replace(rec)
	s.m.logger.InfoContext(ctx, "session logged in",
		logger.CompanyID(rec.CompanyID),
		logger.SessionID(rec.ID),
		logger.UserID(userID),
	)
	return s.writeTokens()
}

// Logout moves the session back to the anonymous user, keeping its language.
// No-op on transient sessions.
func (s *Session) Logout(ctx context.Context) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	if s.rec.IsTransient() {
		return nil
	}

	tokens, err := s.m.newTokens()
	if err != nil {
		return err
	}
	prev := s.rec.UserID
	rec, err := s.m.store.Logout(ctx, s.rec.CompanyID, s.rec.ID, s.rec.LanguageID, tokens.Session, tokens.CSRF)
	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}

	s.replace(rec)
	s.m.logger.InfoContext(ctx, "session logged out",
		logger.CompanyID(rec.CompanyID),
		logger.SessionID(rec.ID),
		logger.UserID(prev),
	)
	return s.writeTokens()
}

// SetLanguage changes the session language and persists it immediately,
// independent of Save. No-op on transient sessions.
func (s *Session) SetLanguage(ctx context.Context, languageID string) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	if s.rec.IsTransient() {
		return nil
	}

	if err := s.m.store.UpdateLanguage(ctx, s.rec.CompanyID, s.rec.ID, languageID); err != nil {
		return fmt.Errorf("session: update language: %w", err)
	}
	s.rec.LanguageID = languageID
	s.tagSet = false
	return nil
}

// SetHasFlashMessage sets the flash flag; persisted by Save.
func (s *Session) SetHasFlashMessage(v bool) {
	if s.rec != nil {
		s.rec.HasFlashMessage = v
	}
}

// HasFlashMessage reports the flash flag
func (s *Session) HasFlashMessage() bool {
	return s.rec != nil && s.rec.HasFlashMessage
}

// Section returns the handle for a named section. The first call for a name
// fetches it from the store with mode; later calls return the same handle and
// keep the first mode.
func (s *Session) Section(ctx context.Context, name string, mode Mode) (*Section, error) {
	if err := requireActive(s.state); err != nil {
		return nil, err
	}
	return s.sections.get(ctx, s.m.store, s.rec, s.m.codec, s.m.logger, name, mode)
}

// Save persists the values bag, the flash flag and every writable section in
// first-access order. The session is closed afterwards even when a store call
// fails; failed writes are not retried.
func (s *Session) Save(ctx context.Context) error {
	to, err := next(s.state, eventSave)
	if err != nil {
		return err
	}
	s.state = to

	if s.rec.IsTransient() {
		return nil
	}

	data, err := s.packValues()
	if err != nil {
		return err
	}
	if err := s.m.store.UpdateSession(ctx, s.rec.CompanyID, s.rec.ID, s.rec.HasFlashMessage, data); err != nil {
		return fmt.Errorf("session: update session: %w", err)
	}
	return s.sections.flush(ctx, s.m.store, s.rec)
}

// Discard closes the session without persisting anything.
func (s *Session) Discard() error {
	to, err := next(s.state, eventDiscard)
	if err != nil {
		return err
	}
	s.state = to
	return nil
}

// DestroyAllSessions removes every session of the current user, this one
// included. Fails on anonymous sessions; no-op on transient ones.
func (s *Session) DestroyAllSessions(ctx context.Context) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	if s.rec.IsTransient() {
		return nil
	}
	if s.rec.IsAnonymous() {
		return errors.Join(ErrLogic, ErrAnonymousSession)
	}
	return s.m.DestroyAllSessionsOfUser(ctx, s.rec.CompanyID, s.rec.UserID)
}

// DestroyAllSessionsOfUser removes every session of userID in the current company.
func (s *Session) DestroyAllSessionsOfUser(ctx context.Context, userID int64) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	return s.m.DestroyAllSessionsOfUser(ctx, s.rec.CompanyID, userID)
}

// DestroyOtherSessions removes every session of the current user except this
// one. Fails on anonymous sessions; no-op on transient ones.
func (s *Session) DestroyOtherSessions(ctx context.Context) error {
	if err := requireActive(s.state); err != nil {
		return err
	}
	if s.rec.IsTransient() {
		return nil
	}
	if s.rec.IsAnonymous() {
		return errors.Join(ErrLogic, ErrAnonymousSession)
	}
	if err := s.m.store.DestroyOtherSessionsOfUser(ctx, s.rec.CompanyID, s.rec.ID); err != nil {
		return fmt.Errorf("session: destroy other sessions: %w", err)
	}
	return nil
}

// State returns the lifecycle state
func (s *Session) State() State { return s.state }

// Record returns a copy of the current session row, nil before Start.
func (s *Session) Record() *Record { return s.rec.Clone() }

func (s *Session) CompanyID() int64 { return s.field().CompanyID }

// ID returns the session row id; 0 for transient sessions.
func (s *Session) ID() int64 { return s.field().ID }

func (s *Session) Token() string { return s.field().Token }

func (s *Session) CSRFToken() string { return s.field().CSRFToken }

func (s *Session) UserID() int64 { return s.field().UserID }

func (s *Session) ProfileID() int64 { return s.field().ProfileID }

func (s *Session) LanguageID() string { return s.field().LanguageID }

// LastRequestAt is the time of the previous request in this session.
func (s *Session) LastRequestAt() time.Time { return s.field().LastRequestAt }

func (s *Session) IsAnonymous() bool { return s.rec.IsAnonymous() }

func (s *Session) IsTransient() bool { return s.rec.IsTransient() }

// LanguageTag parses the language id on first use. Unparseable ids yield language.Und.
func (s *Session) LanguageTag() language.Tag {
	if !s.tagSet {
		tag, err := language.Parse(s.LanguageID())
		if err != nil {
			tag = language.Und
		}
		s.tag, s.tagSet = tag, true
	}
	return s.tag
}

var emptyRecord = &Record{}

func (s *Session) field() *Record {
	if s.rec == nil {
		return emptyRecord
	}
	return s.rec
}

// replace installs a new record and drops everything derived from the old one.
func (s *Session) replace(rec *Record) {
	s.rec = rec
	s.tagSet = false
	s.sections.reset()
	s.unpackValues()
}

func (s *Session) writeTokens() error {
	secure := s.m.secure(s.r)
	if !secure && !s.m.config.AllowInsecure {
		return nil
	}
	if err := s.m.transport.SetTokens(s.w, Tokens{Session: s.rec.Token, CSRF: s.rec.CSRFToken}, secure); err != nil {
		return fmt.Errorf("session: write tokens: %w", err)
	}
	return nil
}
