package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is the default language code used when no language is detected
const DefaultLanguage = "en"

// maxAcceptLanguageLength prevents DoS attacks through oversized Accept-Language headers.
const maxAcceptLanguageLength = 4096

// Matcher picks the best supported language for a set of client preferences.
type Matcher struct {
	supported []string
	matcher   language.Matcher
}

// NewMatcher creates a matcher over BCP 47 codes. Codes that fail to parse are skipped.
func NewMatcher(supported ...string) *Matcher {
	m := &Matcher{}
	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		m.supported = append(m.supported, strings.ToLower(code))
		tags = append(tags, tag)
	}
	if len(tags) > 0 {
		m.matcher = language.NewMatcher(tags)
	}
	return m
}

// Supported returns the normalized supported codes
func (m *Matcher) Supported() []string {
	return m.supported
}

// Match returns the supported code that best serves the given codes, or "" when
// nothing matches with at least low confidence. With no supported languages
// the first parseable code is returned, lowercased.
func (m *Matcher) Match(codes ...string) string {
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		if len(code) == 0 || len(code) > maxLangCodeLength {
			continue
		}
		if tag, err := language.Parse(code); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return ""
	}
	if m.matcher == nil {
		return strings.ToLower(tags[0].String())
	}
	_, idx, conf := m.matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return m.supported[idx]
}

// MatchAcceptLanguage negotiates an Accept-Language header value.
func (m *Matcher) MatchAcceptLanguage(header string) string {
	if header == "" {
		return ""
	}
	if len(header) > maxAcceptLanguageLength {
		header = header[:maxAcceptLanguageLength]
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	codes := make([]string, len(tags))
	for i, tag := range tags {
		codes[i] = tag.String()
	}
	return m.Match(codes...)
}

// ParseAcceptLanguage negotiates header against supportedLangs, returning
// defaultLang when nothing matches.
func ParseAcceptLanguage(header string, supportedLangs []string, defaultLang string) string {
	if header == "" || len(supportedLangs) == 0 {
		return defaultLang
	}
	if lang := NewMatcher(supportedLangs...).MatchAcceptLanguage(header); lang != "" {
		return lang
	}
	return defaultLang
}
