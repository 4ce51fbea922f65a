// Command sessiond serves the session manager over HTTP for a fixed
// directory of companies and users.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/config"
	"github.com/dmitrymomot/sessionkit/pkg/cookie"
	"github.com/dmitrymomot/sessionkit/pkg/environment"
	"github.com/dmitrymomot/sessionkit/pkg/httpserver"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/ratelimiter"
	"github.com/dmitrymomot/sessionkit/pkg/requestid"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("sessiond stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		appCfg    appConfig
		logCfg    logger.Config
		sesCfg    session.Config
		cookieCfg cookie.Config
		httpCfg   httpserver.Config
		limitCfg  ratelimiter.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&logCfg) },
		func() error { return config.Load(&sesCfg) },
		func() error { return config.Load(&cookieCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&limitCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	log := logger.NewFromConfig(logCfg, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
		environment.LoggerExtractor(),
		tenant.LoggerExtractor(),
		session.LoggerExtractor(),
	))
	logger.SetAsDefault(log)

	dir, err := loadDirectory(appCfg.DirectoryFile)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, appCfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	cookieMgr, err := cookie.NewFromConfig(cookieCfg)
	if err != nil {
		return err
	}

	manager := session.NewFromConfig(sesCfg,
		session.WithStore(b.store),
		session.WithTransport(session.NewCompositeTransport(
			session.NewCookieTransport(cookieMgr, sesCfg),
			session.NewHeaderTransport(appCfg.TokenHeader, session.WithCSRFHeader(sesCfg.CSRFHeader)),
		)),
		session.WithLogger(log),
	)

	go runJanitor(ctx, manager, appCfg.PurgeInterval, log)

	handler, err := newRouter(routerDeps{
		cfg:     appCfg,
		env:     environment.Parse(logCfg.Env),
		dir:     dir,
		manager: manager,
		backend: b,
		limits:  limitCfg,
		log:     log,
	})
	if err != nil {
		return err
	}

	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, handler)
}
