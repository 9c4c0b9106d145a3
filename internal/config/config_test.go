package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray config or
// .env file is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSupabase, cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, 6*time.Hour, cfg.Analysis.StaleAfter)
	assert.Equal(t, 90, cfg.Analysis.RetentionDays)
	assert.Equal(t, "0 6 * * *", cfg.Analysis.Schedule)
	assert.Equal(t, "Asia/Kolkata", cfg.Analysis.Timezone)
	assert.Equal(t, 300, cfg.Server.RateLimit)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LARDER_STORE_DRIVER", "sqlite")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://larder.app,https://*.larder-app.pages.dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://larder.app", "https://*.larder-app.pages.dev"}, cfg.Server.CORSOrigins)
}

func TestLoad_PrefixedEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LARDER_STORE_DRIVER", "sqlite")
	t.Setenv("LARDER_STORE_SQLITE_PATH", "/tmp/larder-test.db")
	t.Setenv("LARDER_ANALYSIS_WORKERS", "8")
	t.Setenv("LARDER_ANALYSIS_STALE_AFTER", "30m")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/larder-test.db", cfg.Store.SQLitePath)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Analysis.StaleAfter)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	env := "LARDER_STORE_DRIVER=postgres\nDATABASE_URL=postgres://larder@localhost/larder\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LARDER_STORE_DRIVER")
		os.Unsetenv("DATABASE_URL")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://larder@localhost/larder", cfg.Store.DatabaseURL)
}

func TestLoadFile_YAML(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "larder.yaml")
	yaml := `
store:
  driver: sqlite
  sqlite_path: ./data/larder.db
analysis:
  retention_days: 30
  schedule_enabled: false
log:
  backend: zap
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "./data/larder.db", cfg.Store.SQLitePath)
	assert.Equal(t, 30, cfg.Analysis.RetentionDays)
	assert.False(t, cfg.Analysis.ScheduleEnabled)
	assert.Equal(t, "zap", cfg.Log.Backend)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{RateLimit: 300},
			Store:    StoreConfig{Driver: DriverSQLite, SQLitePath: "larder.db"},
			Analysis: AnalysisConfig{Workers: 4, RetentionDays: 90, Timezone: "UTC", ScheduleEnabled: true},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"supabase missing url", func(c *Config) { c.Store.Driver = DriverSupabase }, "SUPABASE_URL is required"},
		{"postgres missing url", func(c *Config) { c.Store.Driver = DriverPostgres }, "DATABASE_URL is required"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "unknown store driver"},
		{"no workers", func(c *Config) { c.Analysis.Workers = 0 }, "analysis.workers"},
		{"no rate limit", func(c *Config) { c.Server.RateLimit = 0 }, "server.rate_limit"},
		{"bad timezone", func(c *Config) { c.Analysis.Timezone = "Mars/Olympus" }, "invalid analysis.timezone"},
		{"bad timezone ignored when unscheduled", func(c *Config) {
			c.Analysis.Timezone = "Mars/Olympus"
			c.Analysis.ScheduleEnabled = false
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
