package i18n

import "net/http"

// LangExtractor extracts a language code from an HTTP request. An empty
// result means no preference was found.
type LangExtractor func(r *http.Request) string
