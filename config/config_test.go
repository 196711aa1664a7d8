package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/subsidy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Allocation.ThresholdDays)
	assert.Equal(t, "maternity", cfg.Allocation.PrivilegedCategory)
	assert.Equal(t, 30, cfg.Allocation.FilingWindowDays)
	assert.Len(t, cfg.Report.Checks, 2)
	assert.True(t, cfg.DailyRate().IsZero())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /var/lib/subsidy.db
allocation:
  threshold_days: 15
  privileged_category: work_accident
claims:
  daily_rate: "48.75"
report:
  cron: "0 30 7 * * 1-5"
  checks:
    - kind: non_continuous
      limit_days: 90
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/subsidy.db", cfg.Database.Path)
	assert.Equal(t, 15, cfg.Allocation.ThresholdDays)
	assert.Equal(t, "48.75", cfg.DailyRate().StringFixed(2))
	assert.Equal(t, []config.BreachCheck{{Kind: "non_continuous", LimitDays: 90}}, cfg.Report.Checks)

	alloc := cfg.NewAllocator()
	assert.Equal(t, subsidy.CategoryWorkAccident, alloc.PrivilegedCategory)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "allocation:\n  threshold_days: 15\n")
	t.Setenv("SUBSIDY_THRESHOLD_DAYS", "25")
	t.Setenv("SUBSIDY_DB_PATH", ":memory:")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Allocation.ThresholdDays)
	assert.Equal(t, ":memory:", cfg.Database.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "server: [port"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative threshold", func(c *config.Config) { c.Allocation.ThresholdDays = -1 }},
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }},
		{"bad rate", func(c *config.Config) { c.Claims.DailyRate = "ten" }},
		{"negative rate", func(c *config.Config) { c.Claims.DailyRate = "-1" }},
		{"unknown check kind", func(c *config.Config) { c.Report.Checks = []config.BreachCheck{{Kind: "weekly"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
