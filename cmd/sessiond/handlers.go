package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/sessionkit/pkg/i18n"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/ratelimiter"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const (
	keyVisits = "visits"
	keyFlash  = "flash"

	maxSectionBody = 64 << 10
)

type api struct {
	dir       *directory
	languages *i18n.Matcher
	log       *slog.Logger

	loginLimiter *ratelimiter.Bucket
	loginKey     ratelimiter.KeyFunc
}

type sessionInfo struct {
	ID              int64  `json:"id"`
	CompanyID       int64  `json:"company_id"`
	UserID          int64  `json:"user_id"`
	ProfileID       int64  `json:"profile_id"`
	Anonymous       bool   `json:"anonymous"`
	Transient       bool   `json:"transient"`
	Language        string `json:"language"`
	CSRFToken       string `json:"csrf_token"`
	HasFlashMessage bool   `json:"has_flash_message"`
	Flash           string `json:"flash,omitempty"`
	Visits          int64  `json:"visits"`
}

func info(s *session.Session) sessionInfo {
	visits, _ := s.GetInt(keyVisits)
	return sessionInfo{
		ID:              s.ID(),
		CompanyID:       s.CompanyID(),
		UserID:          s.UserID(),
		ProfileID:       s.ProfileID(),
		Anonymous:       s.IsAnonymous(),
		Transient:       s.IsTransient(),
		Language:        s.LanguageID(),
		CSRFToken:       s.CSRFToken(),
		HasFlashMessage: s.HasFlashMessage(),
		Visits:          visits,
	}
}

// getSession counts the visit and hands out a pending flash message once.
func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	s := session.MustFromContext(r.Context())

	visits, _ := s.GetInt(keyVisits)
	s.Set(keyVisits, visits+1)

	out := info(s)
	if s.HasFlashMessage() {
		out.Flash = s.GetString(keyFlash)
		s.Delete(keyFlash)
		s.SetHasFlashMessage(false)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)

	userID, err := a.dir.authenticate(s.CompanyID(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		a.log.WarnContext(ctx, "login rejected", logger.CompanyID(s.CompanyID()), logger.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := s.Login(ctx, userID); err != nil {
		a.fail(w, r, "login failed", err)
		return
	}
	if a.loginLimiter != nil {
		if err := a.loginLimiter.Reset(ctx, a.loginKey(r)); err != nil {
			a.log.WarnContext(ctx, "failed to reset login attempts", logger.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, info(s))
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)
	if err := s.Logout(ctx); err != nil {
		a.fail(w, r, "logout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, info(s))
}

func (a *api) setLanguage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)

	lang := a.languages.Match(r.PostFormValue("language"))
	if lang == "" {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}
	if err := s.SetLanguage(ctx, lang); err != nil {
		a.fail(w, r, "set language failed", err)
		return
	}
	writeJSON(w, http.StatusOK, info(s))
}

func (a *api) setFlash(w http.ResponseWriter, r *http.Request) {
	s := session.MustFromContext(r.Context())
	msg := r.PostFormValue("message")
	if msg == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	s.Set(keyFlash, msg)
	s.SetHasFlashMessage(true)
	w.WriteHeader(http.StatusNoContent)
}

// section opens the named section in the mode given by ?mode=, defaulting to def.
func (a *api) section(w http.ResponseWriter, r *http.Request, def session.Mode) (*session.Section, bool) {
	mode := def
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := session.ParseMode(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		mode = m
	}

	s := session.MustFromContext(r.Context())
	sec, err := s.Section(r.Context(), chi.URLParam(r, "name"), mode)
	if err != nil {
		a.fail(w, r, "open section failed", err)
		return nil, false
	}
	return sec, true
}

func (a *api) getSection(w http.ResponseWriter, r *http.Request) {
	sec, ok := a.section(w, r, session.ModeReadOnly)
	if !ok {
		return
	}
	if !sec.Exists() {
		writeError(w, http.StatusNotFound, "section not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sec.Bytes())
}

func (a *api) putSection(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSectionBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "section payload too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "section payload must be JSON")
		return
	}

	sec, ok := a.section(w, r, session.ModeExclusive)
	if !ok {
		return
	}
	if !sec.Mode().Writable() {
		writeError(w, http.StatusConflict, "section is open read-only in this request")
		return
	}
	sec.SetBytes(body)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) deleteSection(w http.ResponseWriter, r *http.Request) {
	sec, ok := a.section(w, r, session.ModeExclusive)
	if !ok {
		return
	}
	if !sec.Mode().Writable() {
		writeError(w, http.StatusConflict, "section is open read-only in this request")
		return
	}
	sec.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// destroyAll removes every session of the current user. The current one is
// gone afterwards, so it is discarded instead of saved.
func (a *api) destroyAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)
	if err := s.DestroyAllSessions(ctx); err != nil {
		a.fail(w, r, "destroy sessions failed", err)
		return
	}
	_ = s.Discard()
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) destroyOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)
	if err := s.DestroyOtherSessions(ctx); err != nil {
		a.fail(w, r, "destroy other sessions failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) destroyUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := session.MustFromContext(ctx)

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if !a.dir.hasUser(s.CompanyID(), userID) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := s.DestroyAllSessionsOfUser(ctx, userID); err != nil {
		a.fail(w, r, "destroy user sessions failed", err)
		return
	}
	if userID == s.UserID() {
		_ = s.Discard()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, session.ErrAnonymousSession) {
		status = http.StatusUnauthorized
	}
	a.log.ErrorContext(r.Context(), msg, logger.Error(err))
	writeError(w, status, http.StatusText(status))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
