package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/environment"
	"github.com/dmitrymomot/sessionkit/pkg/httpserver"
	"github.com/dmitrymomot/sessionkit/pkg/i18n"
	"github.com/dmitrymomot/sessionkit/pkg/ratelimiter"
	"github.com/dmitrymomot/sessionkit/pkg/requestid"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

type routerDeps struct {
	cfg     appConfig
	env     environment.Environment
	dir     *directory
	manager *session.Manager
	backend *backend
	limits  ratelimiter.Config
	log     *slog.Logger
}

func newRouter(d routerDeps) (http.Handler, error) {
	limiter, err := ratelimiter.NewBucket(d.backend.limits, d.limits)
	if err != nil {
		return nil, err
	}

	a := &api{
		dir:          d.dir,
		languages:    i18n.NewMatcher(d.cfg.Languages...),
		log:          d.log,
		loginLimiter: limiter,
		loginKey:     loginKey,
	}

	resolvers := []tenant.Resolver{tenant.NewHeaderResolver(d.cfg.TenantHeader)}
	if d.cfg.BaseDomain != "" {
		resolvers = append(resolvers, tenant.NewSubdomainResolver(d.cfg.BaseDomain))
	}

	fallback := i18n.DefaultLanguage
	if len(d.cfg.Languages) > 0 {
		fallback = d.cfg.Languages[0]
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(d.cfg.TrustedProxyHeaders...))
	r.Use(environment.Middleware(d.env))

	r.Get("/livez", httpserver.LivenessHandler())
	r.Get("/healthz", httpserver.ReadinessHandler(d.log, d.backend.checks))

	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(
			tenant.NewCompositeResolver(resolvers...),
			d.dir.provider(),
			tenant.WithLogger(d.log),
		))
		r.Use(tenant.RequireTenant(nil))
		r.Use(i18n.Middleware(
			i18n.DefaultLangExtractor(i18n.WithSupportedLanguages(d.cfg.Languages...)),
			fallback,
		))
		if d.backend.tx != nil {
			r.Use(d.backend.tx)
		}
		r.Use(d.manager.Middleware)
		r.Use(d.manager.VerifyCSRF)

		r.Get("/session", a.getSession)
		r.With(ratelimiter.Middleware(limiter, loginKey, d.log)).Post("/login", a.login)
		r.Post("/logout", a.logout)
		r.Put("/language", a.setLanguage)
		r.Post("/flash", a.setFlash)

		r.Get("/sections/{name}", a.getSection)
		r.Put("/sections/{name}", a.putSection)
		r.Delete("/sections/{name}", a.deleteSection)

		r.Group(func(r chi.Router) {
			r.Use(d.manager.RequireAuth)
			r.Delete("/sessions", a.destroyAll)
			r.Delete("/sessions/others", a.destroyOthers)
			r.Delete("/users/{id}/sessions", a.destroyUser)
		})
	})

	return r, nil
}

// loginKey throttles login attempts per company and client address.
func loginKey(r *http.Request) string {
	id, ok := tenant.IDFromContext(r.Context())
	if !ok {
		return ""
	}
	return ratelimiter.Composite(
		func(*http.Request) string { return "login:" + strconv.FormatInt(id, 10) },
		func(r *http.Request) string { return clientip.FromContext(r.Context()) },
	)(r)
}
