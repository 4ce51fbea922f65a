package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache holds one parsed copy per configuration type.
type cache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	global = &cache{values: make(map[reflect.Type]any)}

	defaultEnvOnce sync.Once
)

// LoadEnv reads the given .env files into the process environment without
// overriding variables that are already set. With no paths it reads ./.env.
// Cached configurations are dropped so the next Load sees the new values.
func LoadEnv(paths ...string) error {
	defaultEnvOnce.Do(func() {})
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	ResetCache()
	return nil
}

// MustLoadEnv is LoadEnv that panics on error.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Load parses the environment into v. Each type is parsed once per process;
// later calls copy the cached value. A missing ./.env is not an error.
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvOnce.Do(func() { _ = godotenv.Load() })

	key := reflect.TypeFor[T]()

	global.mu.Lock()
	defer global.mu.Unlock()

	if cached, ok := global.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	parsed, err := env.ParseAs[T]()
	if err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	global.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load that panics on error. Use it for settings the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %s: %v", reflect.TypeFor[T](), err))
	}
}

// ResetCache forgets every cached configuration.
func ResetCache() {
	global.mu.Lock()
	clear(global.values)
	global.mu.Unlock()
}
