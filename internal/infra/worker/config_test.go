package worker

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "35 5,17 * * *", cfg.CronSchedule)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, 60*time.Second, cfg.UpdateDelay)
}

func TestWorkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*WorkerConfig)
	}{
		{"bad cron", func(c *WorkerConfig) { c.CronSchedule = "every day" }},
		{"bad timezone", func(c *WorkerConfig) { c.Timezone = "Nowhere/Land" }},
		{"timeout too short", func(c *WorkerConfig) { c.RunTimeout = time.Second }},
		{"negative delay", func(c *WorkerConfig) { c.UpdateDelay = -time.Second }},
		{"delay too long", func(c *WorkerConfig) { c.UpdateDelay = 2 * time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("CRON_ENABLED", "false")
	t.Setenv("CRON_EXPRESSION", "*/10 * * * *")
	t.Setenv("CRON_TIMEZONE", "UTC")
	t.Setenv("CRON_RUN_TIMEOUT", "30m")
	t.Setenv("CRON_RUN_ON_START", "true")
	t.Setenv("FEED_UPDATE_DELAY", "5s")

	m := NewWorkerMetrics(prometheus.NewRegistry())
	cfg := LoadConfigFromEnv(slog.New(slog.NewJSONHandler(os.Stdout, nil)), m)

	assert.Equal(t, WorkerConfig{
		Enabled:      false,
		CronSchedule: "*/10 * * * *",
		Timezone:     "UTC",
		RunTimeout:   30 * time.Minute,
		RunOnStart:   true,
		UpdateDelay:  5 * time.Second,
	}, *cfg)
	assert.Zero(t, testutil.ToFloat64(m.FallbackActive))
}

func TestLoadConfigFromEnv_FallsBack(t *testing.T) {
	t.Setenv("CRON_EXPRESSION", "not cron")
	t.Setenv("CRON_TIMEZONE", "Invalid/Zone")
	t.Setenv("CRON_RUN_TIMEOUT", "1s")
	t.Setenv("FEED_UPDATE_DELAY", "3h")

	m := NewWorkerMetrics(prometheus.NewRegistry())
	cfg := LoadConfigFromEnv(slog.New(slog.NewJSONHandler(os.Stdout, nil)), m)

	d := DefaultConfig()
	assert.Equal(t, d.CronSchedule, cfg.CronSchedule)
	assert.Equal(t, d.Timezone, cfg.Timezone)
	assert.Equal(t, d.RunTimeout, cfg.RunTimeout)
	assert.Equal(t, d.UpdateDelay, cfg.UpdateDelay)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackActive))
	for _, field := range []string{"cron_schedule", "timezone", "run_timeout", "update_delay"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues(field)), field)
	}
}
