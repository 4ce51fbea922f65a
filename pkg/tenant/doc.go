// Package tenant resolves the company a request belongs to and carries it in
// the request context.
//
// A Resolver extracts an identifier from the request (subdomain, header, path
// segment or a composite of these). A Provider turns the identifier into a
// Tenant, and Middleware caches the result and stores it in the context where
// FromContext and IDFromContext find it. Company ids are int64 and scope every
// session row.
//
// # Usage
//
//	provider := tenant.NewStaticProvider(
//		tenant.Tenant{ID: 1, Abbr: "acme", Name: "Acme", Active: true},
//	)
//	resolver := tenant.NewCompositeResolver(
//		tenant.NewHeaderResolver("X-Tenant"),
//		tenant.NewSubdomainResolver("example.com"),
//	)
//	router.Use(tenant.Middleware(resolver, provider,
//		tenant.WithCacheTTL(10*time.Minute),
//		tenant.WithSkipPaths("/healthz"),
//	))
//
// Requests without an identifier pass through without a tenant; wrap routes
// that need one with RequireTenant.
//
// # Errors
//
//   - ErrTenantNotFound: no tenant matches the identifier (404)
//   - ErrInactiveTenant: tenant exists but is disabled (403)
//   - ErrInvalidIdentifier: resolver failed or identifier malformed (400)
//   - ErrNoTenantInContext: RequireTenant found nothing (404)
package tenant
