package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, c.Env)
	require.Equal(t, 8888, c.Server.Port)
	require.Equal(t, "@every 10m", c.Scheduler.ExpirySpec)
	require.Equal(t, 500, c.Database.SlowThresholdMs)
	require.Equal(t, 10, c.RateLimit.Burst)
	require.Equal(t, 30*time.Second, c.Upgrade.LockTTL())
	require.Empty(t, c.Redis.Addr)
}

func TestNew_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: prod
redis:
  addr: "localhost:6379"
rate_limit:
  rps: 2.5
upgrade:
  lock_ttl_seconds: 5
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_SERVER_PORT", "9000")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, c.Env)
	require.Equal(t, "localhost:6379", c.Redis.Addr)
	require.Equal(t, 2.5, c.RateLimit.RPS)
	require.Equal(t, 5*time.Second, c.Upgrade.LockTTL())
	require.Equal(t, 9000, c.Server.Port)
}

func TestUpgradeConfig_LockTTLFallback(t *testing.T) {
	require.Equal(t, 30*time.Second, UpgradeConfig{}.LockTTL())
}
