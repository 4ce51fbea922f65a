package session

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Sections are not locked:
// every mode reads the latest committed value. Suitable for tests and
// single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*Record
	tokens   map[string]int64
	sections map[sectionKey][]byte
	profile  ProfileFunc
	now      func() time.Time
}

type sectionKey struct {
	sessionID int64
	name      string
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides time.Now for last-request bookkeeping
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMemoryProfile sets the profile derivation
func WithMemoryProfile(fn ProfileFunc) MemoryStoreOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.profile = fn
		}
	}
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[int64]*Record),
		tokens:   make(map[string]int64),
		sections: make(map[sectionKey][]byte),
		profile:  DefaultProfile,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession mints a new anonymous session row
func (s *MemoryStore) StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*Record, error) {
	profileID, err := s.profile(ctx, companyID, AnonymousUserID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token]; exists {
		return nil, ErrDuplicateToken
	}

	s.nextID++
	rec := &Record{
		CompanyID:     companyID,
		ID:            s.nextID,
		Token:         token,
		CSRFToken:     csrfToken,
		UserID:        AnonymousUserID,
		LanguageID:    languageID,
		ProfileID:     profileID,
		LastRequestAt: s.now(),
	}
	s.sessions[rec.ID] = rec
	s.tokens[token] = rec.ID
	return rec.Clone(), nil
}

// GetSession returns the row with its previous last request time and touches it
func (s *MemoryStore) GetSession(_ context.Context, companyID int64, token string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookupToken(companyID, token)
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := rec.Clone()
	rec.LastRequestAt = s.now()
	return out, nil
}

// Login moves the session to userID with new tokens and empty data
func (s *MemoryStore) Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*Record, error) {
	profileID, err := s.profile(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	return s.transition(companyID, sessionID, userID, profileID, nil, token, csrfToken)
}

// Logout moves the session back to the anonymous user with new tokens and empty data
func (s *MemoryStore) Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*Record, error) {
	profileID, err := s.profile(ctx, companyID, AnonymousUserID)
	if err != nil {
		return nil, err
	}
	return s.transition(companyID, sessionID, AnonymousUserID, profileID, &languageID, token, csrfToken)
}

func (s *MemoryStore) transition(companyID, sessionID, userID, profileID int64, languageID *string, token, csrfToken string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookupID(companyID, sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	delete(s.tokens, rec.Token)
	rec.Token = token
	rec.CSRFToken = csrfToken
	rec.UserID = userID
	rec.ProfileID = profileID
	rec.Data = nil
	rec.HasFlashMessage = false
	rec.LastRequestAt = s.now()
	if languageID != nil {
		rec.LanguageID = *languageID
	}
	s.tokens[token] = rec.ID
	s.dropSections(rec.ID)

	return rec.Clone(), nil
}

// UpdateSession persists the data blob and flash flag
func (s *MemoryStore) UpdateSession(_ context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookupID(companyID, sessionID)
	if !ok {
		return nil
	}
	rec.HasFlashMessage = hasFlashMessage
	rec.Data = bytes.Clone(data)
	return nil
}

// UpdateLanguage persists the session language
func (s *MemoryStore) UpdateLanguage(_ context.Context, companyID, sessionID int64, languageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.lookupID(companyID, sessionID); ok {
		rec.LanguageID = languageID
	}
	return nil
}

// DestroyAllSessionsOfUser removes every session of userID in the company
func (s *MemoryStore) DestroyAllSessionsOfUser(_ context.Context, companyID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.sessions {
		if rec.CompanyID == companyID && rec.UserID == userID {
			s.remove(id)
		}
	}
	return nil
}

// DestroyOtherSessionsOfUser removes the owner's sessions except sessionID
func (s *MemoryStore) DestroyOtherSessionsOfUser(_ context.Context, companyID, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	own, ok := s.lookupID(companyID, sessionID)
	if !ok {
		return nil
	}
	for id, rec := range s.sessions {
		if id != sessionID && rec.CompanyID == companyID && rec.UserID == own.UserID {
			s.remove(id)
		}
	}
	return nil
}

// GetNamedSection returns the payload of a named section
func (s *MemoryStore) GetNamedSection(_ context.Context, companyID, sessionID int64, name string, _ Mode) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.lookupID(companyID, sessionID); !ok {
		return nil, ErrSectionNotFound
	}
	data, ok := s.sections[sectionKey{sessionID, name}]
	if !ok {
		return nil, ErrSectionNotFound
	}
	return bytes.Clone(data), nil
}

// UpdateNamedSection inserts or overwrites a named section
func (s *MemoryStore) UpdateNamedSection(_ context.Context, companyID, sessionID int64, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupID(companyID, sessionID); !ok {
		return nil
	}
	s.sections[sectionKey{sessionID, name}] = bytes.Clone(data)
	return nil
}

// DeleteNamedSection removes a named section
func (s *MemoryStore) DeleteNamedSection(_ context.Context, companyID, sessionID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupID(companyID, sessionID); ok {
		delete(s.sections, sectionKey{sessionID, name})
	}
	return nil
}

// PurgeExpired removes sessions whose last request is before cutoff
func (s *MemoryStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.sessions {
		if rec.LastRequestAt.Before(cutoff) {
			s.remove(id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) lookupToken(companyID int64, token string) (*Record, bool) {
	id, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	return s.lookupID(companyID, id)
}

func (s *MemoryStore) lookupID(companyID, sessionID int64) (*Record, bool) {
	rec, ok := s.sessions[sessionID]
	if !ok || rec.CompanyID != companyID {
		return nil, false
	}
	return rec, true
}

func (s *MemoryStore) remove(id int64) {
	if rec, ok := s.sessions[id]; ok {
		delete(s.tokens, rec.Token)
	}
	delete(s.sessions, id)
	s.dropSections(id)
}

func (s *MemoryStore) dropSections(sessionID int64) {
	for k := range s.sections {
		if k.sessionID == sessionID {
			delete(s.sections, k)
		}
	}
}
