package session

import (
	"context"
	"time"
)

// Store persists session rows and named-section rows. Every call is scoped by
// companyID; a row belonging to another company must behave as if absent.
//
// Store errors other than the not-found sentinels are returned to the caller
// unchanged. Implementations that run inside a per-request transaction hold
// the locks taken by GetNamedSection until that transaction ends.
type Store interface {
	// StartSession mints a new anonymous session row.
	StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*Record, error)

	// GetSession returns the row for token with the LastRequestAt of the previous
	// request and records the current time as the new last request time.
	// Returns ErrSessionNotFound when no row matches.
	GetSession(ctx context.Context, companyID int64, token string) (*Record, error)

	// Login moves the session to userID with fresh tokens and empty data.
	Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*Record, error)

	// Logout moves the session back to the anonymous user with fresh tokens,
	// empty data and no named sections. Also used to restart expired sessions.
	Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*Record, error)

	// UpdateSession persists the data blob and flash flag.
	UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error

	// UpdateLanguage persists only the language of the session.
	UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error

	// DestroyAllSessionsOfUser deletes every session row of userID in the company.
	DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error

	// DestroyOtherSessionsOfUser deletes every session row of the owner of
	// sessionID except sessionID itself.
	DestroyOtherSessionsOfUser(ctx context.Context, companyID, sessionID int64) error

	// GetNamedSection returns the payload of a named section, locking the row as
	// mode requires. Returns ErrSectionNotFound when absent.
	GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, mode Mode) ([]byte, error)

	// UpdateNamedSection inserts or overwrites a named section.
	UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error

	// DeleteNamedSection removes a named section. Deleting an absent section is not an error.
	DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error
}

// Purger is implemented by stores that can delete idle sessions in bulk.
// Rows whose last request time is before cutoff are removed with their sections.
type Purger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
