package session

import (
	"context"
	"time"
)

const (
	// AnonymousUserID is the user id of every unauthenticated session
	AnonymousUserID int64 = 0

	// AnonymousProfileID is the profile of the anonymous user
	AnonymousProfileID int64 = 1

	// UserProfileID is the profile DefaultProfile assigns to authenticated users
	UserProfileID int64 = 2
)

// Record is one session row. A zero ID marks a transient session that is
// never written to the store.
type Record struct {
	CompanyID       int64     `json:"company_id"`
	ID              int64     `json:"id"`
	Token           string    `json:"token"`
	CSRFToken       string    `json:"csrf_token"`
	UserID          int64     `json:"user_id"`
	LanguageID      string    `json:"language_id"`
	ProfileID       int64     `json:"profile_id"`
	LastRequestAt   time.Time `json:"last_request_at"`
	HasFlashMessage bool      `json:"has_flash_message"`
	Data            []byte    `json:"data,omitempty"`
}

// IsAnonymous reports whether the record belongs to the anonymous user
func (r *Record) IsAnonymous() bool {
	return r == nil || r.UserID == AnonymousUserID
}

// IsTransient reports whether the record lives only for the current request
func (r *Record) IsTransient() bool {
	return r == nil || r.ID == 0
}

// Clone returns a deep copy so stores never share Data with callers
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}
	return &c
}

// ProfileFunc derives the profile of a user within a company. Stores call it
// whenever they mint or transition a session row.
type ProfileFunc func(ctx context.Context, companyID, userID int64) (int64, error)

// DefaultProfile maps the anonymous user to AnonymousProfileID and everybody
// else to UserProfileID.
func DefaultProfile(_ context.Context, _ int64, userID int64) (int64, error) {
	if userID == AnonymousUserID {
		return AnonymousProfileID, nil
	}
	return UserProfileID, nil
}
