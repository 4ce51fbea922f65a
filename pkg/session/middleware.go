package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// Middleware starts a session for every request and stores it in the context.
// The session is saved right before the response is committed, on the first
// WriteHeader, Write or Flush, or when the handler returns without writing.
// A failed save replaces the response with a 500 and the handler's output is
// dropped. Handlers may Save or Discard the session themselves; the
// middleware then leaves it alone.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Start(r.Context(), w, r)
		if err != nil {
			if errors.Is(err, ErrNoTenant) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			m.logger.ErrorContext(r.Context(), "failed to start session", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := WithSession(r.Context(), s)
		sw := &saveWriter{ResponseWriter: w, ctx: ctx, m: m, s: s}
		next.ServeHTTP(sw, r.WithContext(ctx))
		sw.commit()
	})
}

// errResponseAborted is returned by writes that follow a failed save.
var errResponseAborted = errors.New("session: response aborted after failed save")

// saveWriter saves the session before the first byte of the response goes out.
type saveWriter struct {
	http.ResponseWriter
	ctx       context.Context
	m         *Manager
	s         *Session
	committed bool
	failed    bool
}

func (w *saveWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if w.s.State() != StateActive {
		return
	}
	if err := w.s.Save(w.ctx); err != nil {
		w.failed = true
		w.m.logger.ErrorContext(w.ctx, "failed to save session",
			logger.CompanyID(w.s.CompanyID()),
			logger.SessionID(w.s.ID()),
			logger.Error(err),
		)
		http.Error(w.ResponseWriter, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (w *saveWriter) WriteHeader(code int) {
	w.commit()
	if w.failed {
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveWriter) Write(b []byte) (int, error) {
	w.commit()
	if w.failed {
		return 0, errResponseAborted
	}
	return w.ResponseWriter.Write(b)
}

func (w *saveWriter) Flush() {
	w.commit()
	if w.failed {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *saveWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// RequireAuth rejects requests whose session is anonymous. Must run after Middleware.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok || s.IsAnonymous() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifyCSRF checks the CSRF token echoed by the client on unsafe methods
// against the session's token. Must run after Middleware.
func (m *Manager) VerifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		s, ok := FromContext(r.Context())
		if !ok || !m.ValidCSRF(s, r) {
			m.logger.WarnContext(r.Context(), "csrf token mismatch", logger.Error(ErrInvalidCSRFToken))
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidCSRF reports whether the request echoes the session's CSRF token in
// the configured header or form field.
func (m *Manager) ValidCSRF(s *Session, r *http.Request) bool {
	expected := s.CSRFToken()
	if expected == "" {
		return false
	}
	got := r.Header.Get(m.config.CSRFHeader)
	if got == "" && m.config.CSRFFormField != "" {
		got = r.PostFormValue(m.config.CSRFFormField)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
