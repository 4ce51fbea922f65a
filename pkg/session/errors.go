package session

import "errors"

var (
	// ErrSessionNotFound indicates no session row matches the token for the tenant
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSectionNotFound indicates a named section has no stored row
	ErrSectionNotFound = errors.New("session.section_not_found")

	// ErrSectionEmpty is returned when decoding a section that holds no payload
	ErrSectionEmpty = errors.New("session.section_empty")

	// ErrDuplicateToken indicates a store already holds the session token
	ErrDuplicateToken = errors.New("session.duplicate_token")

	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("session.token_generation_failed")

	// ErrNoTenant indicates the request could not be mapped to a company
	ErrNoTenant = errors.New("session.no_tenant")

	// ErrNotStarted is returned by operations that need Start to have succeeded
	ErrNotStarted = errors.New("session.not_started")

	// ErrAlreadyStarted is returned when Start is called twice on one session
	ErrAlreadyStarted = errors.New("session.already_started")

	// ErrSessionClosed is returned once a session has been saved or discarded
	ErrSessionClosed = errors.New("session.closed")

	// ErrLogic marks programmer errors; handlers should treat it as a 5xx
	ErrLogic = errors.New("session.logic_error")

	// ErrAnonymousSession is joined with ErrLogic when an operation needs an authenticated user
	ErrAnonymousSession = errors.New("session.anonymous")

	// ErrInvalidCSRFToken indicates the echoed CSRF token does not match the session
	ErrInvalidCSRFToken = errors.New("session.invalid_csrf_token")
)
