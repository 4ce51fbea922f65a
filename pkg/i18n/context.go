package i18n

import (
	"context"
)

// localeContextKey is the key for storing locale in context
type localeContextKey struct{}

// SetLocale sets the locale in the context.
func SetLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the locale stored by SetLocale, if any.
func LocaleFromContext(ctx context.Context) (string, bool) {
	locale, ok := ctx.Value(localeContextKey{}).(string)
	return locale, ok && locale != ""
}

// GetLocale returns the locale from the context, DefaultLanguage when unset.
func GetLocale(ctx context.Context) string {
	if locale, ok := LocaleFromContext(ctx); ok {
		return locale
	}
	return DefaultLanguage
}
