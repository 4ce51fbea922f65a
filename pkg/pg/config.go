package pg

import "time"

// Config holds the pool and migration settings, loaded from PG_* environment variables.
type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"2s"` // grows linearly with each attempt

	// MigrationsTable is the goose version table. Session stores share one
	// database with the host application, so keep it distinct per service.
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"session_schema_migrations"`
	SkipMigrations  bool   `env:"PG_SKIP_MIGRATIONS" envDefault:"false"`
}
