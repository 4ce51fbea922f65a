package i18n

import (
	"net/http"
	"strings"
)

// maxLangCodeLength is the maximum allowed length for a language code
const maxLangCodeLength = 35 // RFC 5646 recommends 35 characters max

// ExtractorConfig holds configuration for the language extractor
type ExtractorConfig struct {
	CookieName     string
	QueryParamName string
	SupportedLangs []string
}

// ExtractorOption configures the language extractor
type ExtractorOption func(*ExtractorConfig)

// WithCookieName sets the cookie name to check for language preference
func WithCookieName(name string) ExtractorOption {
	return func(c *ExtractorConfig) {
		if name == "" {
			return
		}
		c.CookieName = name
	}
}

// WithQueryParamName sets the query parameter name to check for language
func WithQueryParamName(name string) ExtractorOption {
	return func(c *ExtractorConfig) {
		if name == "" {
			return
		}
		c.QueryParamName = name
	}
}

// WithSupportedLanguages sets the list of supported languages for validation
func WithSupportedLanguages(langs ...string) ExtractorOption {
	return func(c *ExtractorConfig) {
		if len(langs) == 0 {
			return
		}
		c.SupportedLangs = langs
	}
}

// DefaultLangExtractor creates a language extractor that checks multiple sources in priority order:
// 1. Cookie (default name: "lang")
// 2. Query parameter (default name: "lang")
// 3. Accept-Language header
//
// Each candidate is matched against SupportedLangs when set, so "fr-CA"
// resolves to a supported "fr". Returns "" when nothing matches.
func DefaultLangExtractor(opts ...ExtractorOption) LangExtractor {
	config := &ExtractorConfig{
		CookieName:     "lang",
		QueryParamName: "lang",
	}

	for _, opt := range opts {
		opt(config)
	}

	matcher := NewMatcher(config.SupportedLangs...)

	return func(r *http.Request) string {
		if config.CookieName != "" {
			if c, err := r.Cookie(config.CookieName); err == nil {
				if lang := matcher.Match(strings.TrimSpace(c.Value)); lang != "" {
					return lang
				}
			}
		}

		if config.QueryParamName != "" {
			if lang := matcher.Match(strings.TrimSpace(r.URL.Query().Get(config.QueryParamName))); lang != "" {
				return lang
			}
		}

		return matcher.MatchAcceptLanguage(r.Header.Get("Accept-Language"))
	}
}
