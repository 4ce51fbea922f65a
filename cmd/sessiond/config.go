package main

import "time"

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverMySQL    = "mysql"
	driverRedis    = "redis"
	driverMongo    = "mongo"
)

// appConfig holds the service-level settings. Store, logger, cookie and
// listener settings live in their own packages' Config types.
type appConfig struct {
	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"memory"`
	DirectoryFile string        `env:"DIRECTORY_FILE" envDefault:"directory.yaml"`
	BaseDomain    string        `env:"BASE_DOMAIN" envDefault:""`
	TenantHeader  string        `env:"TENANT_HEADER" envDefault:"X-Tenant"`
	TokenHeader   string        `env:"SESSION_TOKEN_HEADER" envDefault:"Authorization"`
	Languages     []string      `env:"LANGUAGES" envDefault:"en,de,fr,es" envSeparator:","`
	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"5m"`
	RedisTTL      time.Duration `env:"REDIS_SESSION_TTL" envDefault:"24h"`

	// TrustedProxyHeaders name the headers carrying the client address, in
	// order. Empty means the TCP peer address is used.
	TrustedProxyHeaders []string `env:"TRUSTED_PROXY_HEADERS" envSeparator:","`
}
