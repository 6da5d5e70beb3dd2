package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("IMUDB_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "imudb", cfg.Database.DBName)
	assert.Equal(t, int32(5), cfg.Database.MaxConns)
	assert.Equal(t, ApplyModeSQL, cfg.Apply.Mode)
	assert.Equal(t, 10*time.Second, cfg.Workflow.CallTimeout)
	assert.Equal(t, 3, cfg.Auth.ProfileRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Auth.ProfileBackoff)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  addr: ":9090"
  allowed_origins:
    - https://imudb.example.com
database:
  host: db.internal
  port: 6543
  dbname: imudb_prod
auth:
  jwt_secret: from-file
apply:
  mode: edge_function
  function_url: https://project.supabase.co/functions/v1/apply-pending-edit
  timeout: 5s
workflow:
  call_timeout: 3s
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("IMUDB_DATABASE_HOST", "db.override")
	t.Setenv("IMUDB_SERVER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "imudb_prod", cfg.Database.DBName)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, ApplyModeEdgeFunction, cfg.Apply.Mode)
	assert.Equal(t, 5*time.Second, cfg.Apply.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Workflow.CallTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverMemory},
			Auth:     AuthConfig{JWTSecret: "s"},
			Apply:    ApplyConfig{Mode: ApplyModeSQL},
			Workflow: WorkflowConfig{CallTimeout: time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"unknown driver":     func(c *Config) { c.Database.Driver = "sqlite" },
		"unknown apply mode": func(c *Config) { c.Apply.Mode = "rpc" },
		"edge without url":   func(c *Config) { c.Apply.Mode = ApplyModeEdgeFunction },
		"missing secret":     func(c *Config) { c.Auth.JWTSecret = " " },
		"zero call timeout":  func(c *Config) { c.Workflow.CallTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_RejectsInvalidEnv(t *testing.T) {
	t.Setenv("IMUDB_AUTH_JWT_SECRET", "s")
	t.Setenv("IMUDB_APPLY_MODE", "carrier_pigeon")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
