package tenant

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Resolver extracts tenant identifier from HTTP requests.
type Resolver interface {
	// Resolve extracts the tenant identifier from the request.
	// Returns empty string if no tenant identifier is found.
	Resolve(r *http.Request) (string, error)
}

// SubdomainResolver takes the leftmost label of the host below BaseDomain,
// e.g. "acme" from "acme.example.com" with BaseDomain "example.com".
type SubdomainResolver struct {
	BaseDomain string
}

// NewSubdomainResolver creates a new subdomain resolver.
func NewSubdomainResolver(baseDomain string) *SubdomainResolver {
	return &SubdomainResolver{BaseDomain: strings.ToLower(strings.Trim(baseDomain, "."))}
}

// Resolve extracts the tenant from the subdomain. The bare base domain and
// "www" resolve to nothing.
func (r *SubdomainResolver) Resolve(req *http.Request) (string, error) {
	host := strings.ToLower(req.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var rest string
	if r.BaseDomain != "" {
		prefix, ok := strings.CutSuffix(host, "."+r.BaseDomain)
		if !ok {
			return "", nil
		}
		rest = prefix
	} else {
		// without a base domain assume sub.domain.tld
		parts := strings.Split(host, ".")
		if len(parts) < 3 {
			return "", nil
		}
		rest = strings.Join(parts[:len(parts)-2], ".")
	}

	labels := strings.Split(rest, ".")
	if labels[0] == "www" {
		labels = labels[1:]
	}
	if len(labels) == 0 {
		return "", nil
	}
	return labels[len(labels)-1], nil
}

// HeaderResolver extracts tenant identifier from HTTP header.
type HeaderResolver struct {
	HeaderName string
}

// NewHeaderResolver creates a new header resolver.
func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = "X-Tenant"
	}
	return &HeaderResolver{HeaderName: headerName}
}

// Resolve extracts tenant from the configured header.
func (r *HeaderResolver) Resolve(req *http.Request) (string, error) {
	return strings.TrimSpace(req.Header.Get(r.HeaderName)), nil
}

// PathResolver extracts tenant identifier from URL path segment.
type PathResolver struct {
	// Position is the 1-based position in the path (e.g., 2 for /tenants/{id}/...)
	Position int
}

// NewPathResolver creates a new path resolver.
func NewPathResolver(position int) *PathResolver {
	return &PathResolver{Position: position}
}

// Resolve extracts tenant from the specified path position.
func (r *PathResolver) Resolve(req *http.Request) (string, error) {
	if r.Position < 1 {
		return "", errors.New("tenant: invalid path position")
	}

	path := strings.Trim(req.URL.Path, "/")
	if path == "" {
		return "", nil
	}

	parts := strings.Split(path, "/")
	if r.Position > len(parts) {
		return "", nil
	}
	return parts[r.Position-1], nil
}

// CompositeResolver tries multiple resolvers in order until one succeeds.
type CompositeResolver struct {
	Resolvers []Resolver
}

// NewCompositeResolver creates a new composite resolver.
func NewCompositeResolver(resolvers ...Resolver) *CompositeResolver {
	return &CompositeResolver{Resolvers: resolvers}
}

// Resolve tries each resolver in order, returning the first non-empty result.
func (c *CompositeResolver) Resolve(r *http.Request) (string, error) {
	var errs []error

	for _, resolver := range c.Resolvers {
		id, err := resolver.Resolve(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			return id, nil
		}
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("composite resolver errors: %w", errors.Join(errs...))
	}

	return "", nil
}

// ResolverFunc is an adapter to allow the use of ordinary functions as Resolvers.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls the function.
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}
