package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/sessionkit/pkg/config"
	"github.com/dmitrymomot/sessionkit/pkg/httpserver"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/mongo"
	"github.com/dmitrymomot/sessionkit/pkg/mysql"
	"github.com/dmitrymomot/sessionkit/pkg/pg"
	"github.com/dmitrymomot/sessionkit/pkg/ratelimiter"
	"github.com/dmitrymomot/sessionkit/pkg/redis"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/session/mongostore"
	"github.com/dmitrymomot/sessionkit/pkg/session/mysqlstore"
	"github.com/dmitrymomot/sessionkit/pkg/session/pgstore"
	"github.com/dmitrymomot/sessionkit/pkg/session/redisstore"
)

var errUnknownDriver = errors.New("sessiond.unknown_store_driver")

// errRollback aborts the request transaction without being reported.
var errRollback = errors.New("rollback")

// backend is an opened session store plus what the HTTP layer needs from it.
type backend struct {
	store session.Store
	// tx wraps each request in one database transaction; nil when the store
	// has no transactions.
	tx     func(http.Handler) http.Handler
	checks map[string]httpserver.Check
	// limits holds login throttling buckets.
	limits ratelimiter.Store
	close  func()
}

func openBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	log = log.With(logger.Store(cfg.StoreDriver))

	switch cfg.StoreDriver {
	case driverMemory:
		limits := ratelimiter.NewMemoryStore()
		return &backend{
			store:  session.NewMemoryStore(),
			checks: map[string]httpserver.Check{},
			limits: limits,
			close:  limits.Close,
		}, nil

	case driverPostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgCfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		inTx := func(ctx context.Context, fn func(context.Context) error) error {
			return pg.InTx(ctx, pool, fn)
		}
		limits := ratelimiter.NewMemoryStore()
		return &backend{
			store:  pgstore.New(pool),
			tx:     txMiddleware(inTx, log),
			checks: map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)},
			limits: limits,
			close: func() {
				limits.Close()
				pool.Close()
			},
		}, nil

	case driverMySQL:
		var myCfg mysql.Config
		if err := config.Load(&myCfg); err != nil {
			return nil, err
		}
		db, err := mysql.Connect(ctx, myCfg)
		if err != nil {
			return nil, err
		}
		store := mysqlstore.New(db)
		if err := store.CreateTables(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		inTx := func(ctx context.Context, fn func(context.Context) error) error {
			return mysql.InTx(ctx, db, fn)
		}
		limits := ratelimiter.NewMemoryStore()
		return &backend{
			store:  store,
			tx:     txMiddleware(inTx, log),
			checks: map[string]httpserver.Check{"mysql": mysql.Healthcheck(db)},
			limits: limits,
			close: func() {
				limits.Close()
				if err := db.Close(); err != nil {
					log.Error("failed to close mysql", logger.Error(err))
				}
			},
		}, nil

	case driverRedis:
		var rCfg redis.Config
		if err := config.Load(&rCfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, rCfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: redisstore.New(client,
				redisstore.WithPrefix(rCfg.KeyPrefix),
				redisstore.WithTTL(cfg.RedisTTL),
			),
			checks: map[string]httpserver.Check{"redis": redis.Healthcheck(client)},
			limits: ratelimiter.NewRedisStore(client, rCfg.KeyPrefix+":login"),
			close: func() {
				if err := client.Close(); err != nil {
					log.Error("failed to close redis", logger.Error(err))
				}
			},
		}, nil

	case driverMongo:
		var mCfg mongo.Config
		if err := config.Load(&mCfg); err != nil {
			return nil, err
		}
		db, err := mongo.Database(ctx, mCfg)
		if err != nil {
			return nil, err
		}
		store := mongostore.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		limits := ratelimiter.NewMemoryStore()
		return &backend{
			store:  store,
			checks: map[string]httpserver.Check{"mongo": mongo.Healthcheck(db.Client())},
			limits: limits,
			close: func() {
				limits.Close()
				if err := db.Client().Disconnect(context.Background()); err != nil {
					log.Error("failed to close mongo", logger.Error(err))
				}
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", errUnknownDriver, cfg.StoreDriver)
}

// txMiddleware runs the rest of the chain inside one transaction, so section
// locks taken by the store are held until the response is complete. Requests
// answered with a 5xx are rolled back.
func txMiddleware(inTx func(context.Context, func(context.Context) error) error, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			err := inTx(r.Context(), func(ctx context.Context) error {
				next.ServeHTTP(ww, r.WithContext(ctx))
				if ww.Status() >= http.StatusInternalServerError {
					return errRollback
				}
				return nil
			})
			if err != nil && !errors.Is(err, errRollback) {
				log.ErrorContext(r.Context(), "request transaction failed", logger.Error(err))
				if ww.Status() == 0 {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}
		})
	}
}
