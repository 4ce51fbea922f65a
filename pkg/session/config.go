package session

import "time"

// Config holds session configuration
type Config struct {
	// SessionCookieName carries the bearer token (HttpOnly)
	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"ses_session_token"`

	// CSRFCookieName carries the CSRF token (readable by client script)
	CSRFCookieName string `env:"SESSION_CSRF_COOKIE_NAME" envDefault:"ses_csrf_token"`

	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`
	CookiePath   string `env:"SESSION_COOKIE_PATH" envDefault:"/"`

	// Timeout is the idle period after which a session is restarted
	Timeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"20m"`

	// EntropyLength is the number of random bytes hashed into each token
	EntropyLength int `env:"SESSION_ENTROPY_LENGTH" envDefault:"32"`

	// DefaultLanguage is used when no language can be resolved from the request
	DefaultLanguage string `env:"SESSION_DEFAULT_LANGUAGE" envDefault:"en"`

	CSRFHeader    string `env:"SESSION_CSRF_HEADER" envDefault:"X-CSRF-Token"`
	CSRFFormField string `env:"SESSION_CSRF_FORM_FIELD" envDefault:"csrf_token"`

	// AllowInsecure writes cookies on plaintext channels (without the Secure flag).
	// Local development only.
	AllowInsecure bool `env:"SESSION_ALLOW_INSECURE" envDefault:"false"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		SessionCookieName: "ses_session_token",
		CSRFCookieName:    "ses_csrf_token",
		CookiePath:        "/",
		Timeout:           1200 * time.Second,
		EntropyLength:     32,
		DefaultLanguage:   "en",
		CSRFHeader:        "X-CSRF-Token",
		CSRFFormField:     "csrf_token",
	}
}

// Expired reports whether a session last seen at lastRequestAt is past the timeout at now.
func (c Config) Expired(lastRequestAt, now time.Time) bool {
	return now.Sub(lastRequestAt) > c.Timeout
}

// NewFromConfig creates a new Manager from the provided Config.
// Requires a Store via options.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}
