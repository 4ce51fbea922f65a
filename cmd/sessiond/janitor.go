package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

// runJanitor purges expired sessions every interval until ctx is done.
func runJanitor(ctx context.Context, m *session.Manager, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := m.PurgeExpired(ctx); err != nil {
				log.ErrorContext(ctx, "purge expired sessions", logger.Error(err))
			}
		}
	}
}
