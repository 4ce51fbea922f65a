// Package i18n resolves the language of a request.
//
// A Matcher negotiates client preferences (cookie, query parameter or the
// Accept-Language header) against the languages an application supports,
// using golang.org/x/text/language so regional variants fall back to their
// base language. Middleware stores the result in the request context where
// GetLocale and LocaleFromContext read it; the session manager uses it as the
// language of new and restarted sessions.
//
//	router.Use(i18n.Middleware(
//		i18n.DefaultLangExtractor(i18n.WithSupportedLanguages("en", "nl", "de")),
//		"en",
//	))
package i18n
