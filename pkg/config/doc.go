// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags. Load parses a
// struct type once and hands out copies afterwards, reading ./.env through
// godotenv on first use. LoadEnv pulls in additional files, which is how the
// sessiond binary picks up a deployment-specific env file.
//
//	type Config struct {
//		Session session.Config
//		Log     logger.Config
//		Addr    string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// ResetCache exists for tests that change the environment between loads.
package config
