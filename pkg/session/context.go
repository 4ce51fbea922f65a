package session

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

type sessionContextKey struct{}

// WithSession adds a session to the context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// FromContext retrieves a session from the context
func FromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*Session)
	return session, ok && session != nil
}

// MustFromContext retrieves a session from the context or panics
func MustFromContext(ctx context.Context) *Session {
	session, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in context")
	}
	return session
}

// UserIDFromContext retrieves the user ID of an authenticated session in context
func UserIDFromContext(ctx context.Context) (int64, bool) {
	session, ok := FromContext(ctx)
	if !ok || session.IsAnonymous() {
		return 0, false
	}
	return session.UserID(), true
}

// LoggerExtractor returns a logger.ContextExtractor adding the session id and
// user id of the session in context under the "session" group.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		s, ok := FromContext(ctx)
		if !ok || s.rec == nil {
			return slog.Attr{}, false
		}
		return logger.Group("session",
			slog.Int64("id", s.ID()),
			slog.Int64("user_id", s.UserID()),
		), true
	}
}
