// Package session provides multi-tenant, server-side sessions for Go web
// applications: token issuance, resume, idle-expiry restart, login/logout
// identity transitions and named sections with per-request lock modes.
//
// # Architecture
//
// A Manager holds the process-wide collaborators: a Store that persists
// session rows and named sections, a Transport that carries the session and
// CSRF tokens, a token.Generator and the Config. For every request the
// Manager hands out one Session that walks a small state machine:
//
//	unstarted ──Start──► active ──Save────► saved
//	    │                  └────Discard──► discarded
//	    └──Discard──────────────────────► discarded
//
// Start resumes the session named by the inbound token for the current
// company. A missing, malformed, unknown or foreign token silently yields a
// brand-new anonymous session. A session idle for longer than Config.Timeout
// is restarted: same id, new tokens, anonymous user, empty data.
//
// Tokens are written back only on secure channels (see IsSecureRequest), or
// everywhere when Config.AllowInsecure is set for local development.
//
// # Named sections
//
// Section(ctx, name, mode) returns a handle that is fetched once per request.
// ModeExclusive and ModeShared map to locking reads in stores that support
// them (SELECT ... FOR UPDATE / FOR SHARE) and are always written back on
// Save; a nil payload deletes the row. ModeReadOnly reads without a lock and
// is never written back. The first mode requested for a name wins for the
// rest of the request.
//
// # Usage
//
//	cookieMgr, _ := cookie.New([]string{secret})
//	manager := session.New(
//	    session.WithCookieManager(cookieMgr),
//	    session.WithStore(pgstore.New(pool)),
//	    session.WithLogger(log),
//	)
//
//	r.Use(tenant.Middleware(resolver, provider))
//	r.Use(manager.Middleware)
//	r.Use(manager.VerifyCSRF)
//
//	func login(w http.ResponseWriter, r *http.Request) {
//	    sess := session.MustFromContext(r.Context())
//	    if err := sess.Login(r.Context(), userID); err != nil { ... }
//	}
//
//	func cart(w http.ResponseWriter, r *http.Request) {
//	    sec, _ := session.MustFromContext(r.Context()).Section(r.Context(), "cart", session.ModeExclusive)
//	    var items []Item
//	    _ = sec.Decode(&items)
//	    items = append(items, item)
//	    _ = sec.Encode(items)
//	}
//
// # Errors
//
// Unknown tokens and absent sections are not errors. Store failures are
// returned wrapped and unchanged, without retries. Destroying sessions from an
// anonymous session returns an error matching both ErrLogic and
// ErrAnonymousSession. An undeclared Mode panics.
package session
