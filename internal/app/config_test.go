package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/mediadesk.sqlite", cfg.Database.Path)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
	require.Equal(t, 365, cfg.Maintenance.AuditRetentionDays)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9100
  log_level: debug
database:
  driver: postgres
  postgres:
    enabled: true
    host: db.internal
    port: 5432
    database: mediadesk
    username: svc
    password: secret
auth:
  jwt:
    secret: file-secret
    issuer: mediadesk
    access_token_ttl: 45m
maintenance:
  audit_retention_days: 30
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	require.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 45*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	// Untouched sections keep their defaults.
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MEDIADESK_SERVER_PORT", "9200")
	t.Setenv("MEDIADESK_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}
