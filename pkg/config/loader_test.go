package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/config"
)

type defaultsConfig struct {
	Name    string        `env:"CFGTEST_NAME" envDefault:"sessiond"`
	Timeout time.Duration `env:"CFGTEST_TIMEOUT" envDefault:"20m"`
	Secure  bool          `env:"CFGTEST_SECURE" envDefault:"true"`
}

type cachedConfig struct {
	Value string `env:"CFGTEST_CACHED" envDefault:"first"`
}

type requiredConfig struct {
	Value string `env:"CFGTEST_REQUIRED_MISSING,required"`
}

type fileConfig struct {
	Token  string   `env:"CFGTEST_FILE_TOKEN"`
	Langs  []string `env:"CFGTEST_FILE_LANGS" envSeparator:","`
	Preset string   `env:"CFGTEST_FILE_PRESET"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "sessiond", cfg.Name)
	assert.Equal(t, 20*time.Minute, cfg.Timeout)
	assert.True(t, cfg.Secure)
}

func TestLoad_Cached(t *testing.T) {
	var first cachedConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Value)

	t.Setenv("CFGTEST_CACHED", "second")

	var again cachedConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Value)

	config.ResetCache()
	var fresh cachedConfig
	require.NoError(t, config.Load(&fresh))
	assert.Equal(t, "second", fresh.Value)
}

func TestLoad_Errors(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrParsingConfig)

	assert.ErrorIs(t, config.Load[defaultsConfig](nil), config.ErrNilPointer)
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte(
		"CFGTEST_FILE_TOKEN=\"quoted value\"\n"+
			"CFGTEST_FILE_LANGS=en,de,fr\n"+
			"CFGTEST_FILE_PRESET=from_file\n",
	), 0o600))

	// Variables already in the environment win over the file.
	t.Setenv("CFGTEST_FILE_PRESET", "from_env")
	t.Cleanup(func() {
		_ = os.Unsetenv("CFGTEST_FILE_TOKEN")
		_ = os.Unsetenv("CFGTEST_FILE_LANGS")
	})

	require.NoError(t, config.LoadEnv(path))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "quoted value", cfg.Token)
	assert.Equal(t, []string{"en", "de", "fr"}, cfg.Langs)
	assert.Equal(t, "from_env", cfg.Preset)

	assert.ErrorIs(t, config.LoadEnv(filepath.Join(dir, "missing.env")), config.ErrLoadingEnvFile)
	assert.Panics(t, func() { config.MustLoadEnv(filepath.Join(dir, "missing.env")) })
}
