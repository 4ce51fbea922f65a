// Package httpserver wraps net/http.Server with graceful shutdown.
//
// Run blocks until its context is cancelled or the process receives SIGINT
// or SIGTERM, then drains in-flight requests within the shutdown timeout and
// runs the stop hooks. LivenessHandler and ReadinessHandler serve the usual
// probes; readiness takes named checks such as pg.Healthcheck and
// redis.Healthcheck.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(func(context.Context, *slog.Logger) { pool.Close() }),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
