package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so stray .env files do not leak in.
func chdir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Chdir(tmp)
	return tmp
}

func TestLoad_Defaults(t *testing.T) {
	dir := chdir(t)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Addr)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 10*time.Second, cfg.DB.Timeout)
	assert.Equal(t, "https://openlibrary.org", cfg.OpenLibrary.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.OpenLibrary.Timeout)
	assert.Equal(t, 720*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "human", cfg.Log.Format)
	assert.Equal(t, "db/migrations", cfg.Migrations.Dir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := chdir(t)
	yaml := "app:\n  addr: \":9000\"\ncache:\n  driver: sqlite\n  ttl: 1h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("APP_ADDR", ":9100")
	t.Setenv("OPENLIBRARY_TIMEOUT", "5s")
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.App.Addr)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Second, cfg.OpenLibrary.Timeout)
	assert.Equal(t, "memory", cfg.DB.Driver)
}

func TestLoad_EnvFilesDoNotOverrideEnvironment(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_DSN=from_file\nJWT_SECRET=file-secret\n"), 0o644))

	t.Setenv("DB_DSN", "from_env")
	// Registered so the value loaded from .env is cleared after the test.
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.DB.DSN)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "db driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "cache driver", env: map[string]string{"CACHE_DRIVER": "redis"}},
		{name: "postgres cache without postgres", env: map[string]string{"DB_DRIVER": "memory", "CACHE_DRIVER": "postgres"}},
		{name: "log format", env: map[string]string{"LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/catalog", RedactDSN("postgres://app:s3cret@db:5432/catalog"))
	assert.Equal(t, "not a dsn", RedactDSN("not a dsn"))
}
