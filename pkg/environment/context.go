package environment

import (
	"context"
	"strings"
)

// Environment names the deployment stage the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Staging     Environment = "staging"
)

// Parse maps short aliases ("dev", "prod", "stage") onto the canonical names.
// Anything else is returned lowercased as a custom environment.
func Parse(s string) Environment {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "dev", string(Development):
		return Development
	case "prod", string(Production):
		return Production
	case "stage", string(Staging):
		return Staging
	default:
		return Environment(v)
	}
}

func (e Environment) String() string { return string(e) }

type contextKey struct{}

// WithContext attaches env to ctx.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment stored in ctx, or "" when absent.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

func IsProduction(ctx context.Context) bool  { return Parse(string(FromContext(ctx))) == Production }
func IsDevelopment(ctx context.Context) bool { return Parse(string(FromContext(ctx))) == Development }
func IsStaging(ctx context.Context) bool     { return Parse(string(FromContext(ctx))) == Staging }
