// Package cookie wraps net/http cookies with defaults, HMAC signing,
// AES-GCM encryption and one-shot flash values.
//
// A Manager is built from one or more secrets (at least 32 characters each).
// The first secret signs and encrypts; every secret is tried when reading, so
// keys can be rotated without invalidating cookies already issued.
//
//	man, err := cookie.New([]string{os.Getenv("COOKIE_SECRETS")},
//	    cookie.WithDomain("app.example.com"),
//	)
//
//	_ = man.SetEncrypted(w, "ses_session_token", tok, cookie.WithSecure(true))
//	tok, err := man.GetEncrypted(r, "ses_session_token")
//
// The session package uses the encrypted form for the bearer token and the
// plain form for the CSRF token, which client script has to read back.
//
// Sentinel errors (ErrCookieNotFound, ErrInvalidSignature,
// ErrDecryptionFailed, ErrInvalidFormat) support errors.Is.
package cookie
