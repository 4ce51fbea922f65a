package mysql

import "time"

// Config holds the connection settings, loaded from MYSQL_* environment variables.
type Config struct {
	DSN             string        `env:"MYSQL_DSN,required"` // user:pass@tcp(host:3306)/db
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"MYSQL_CONN_MAX_IDLE_TIME" envDefault:"10m"`

	RetryAttempts int           `env:"MYSQL_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"MYSQL_RETRY_INTERVAL" envDefault:"2s"`
}
