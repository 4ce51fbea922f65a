package i18n

import (
	"net/http"
)

// Middleware returns an HTTP middleware that determines the client's preferred
// language and stores it in the request context.
//
// A nil extractor means DefaultLangExtractor. When the extractor returns an
// empty string, fallback is stored instead; an empty fallback means
// DefaultLanguage.
func Middleware(extr LangExtractor, fallback string) func(http.Handler) http.Handler {
	if extr == nil {
		extr = DefaultLangExtractor()
	}
	if fallback == "" {
		fallback = DefaultLanguage
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := extr(r)
			if lang == "" {
				lang = fallback
			}
			next.ServeHTTP(w, r.WithContext(SetLocale(r.Context(), lang)))
		})
	}
}
