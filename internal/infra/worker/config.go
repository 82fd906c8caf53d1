package worker

import (
	"fmt"
	"log/slog"
	"time"

	"feedrelay/pkg/config"
)

// WorkerConfig controls the periodic refresh schedule.
//
// Environment variables:
//   - CRON_ENABLED: bool (default: true)
//   - CRON_EXPRESSION: five-field cron expression (default: "35 5,17 * * *")
//   - CRON_TIMEZONE: IANA timezone name (default: "Asia/Shanghai")
//   - CRON_RUN_TIMEOUT: duration, 1m-24h (default: 6h)
//   - CRON_RUN_ON_START: bool (default: false)
//   - FEED_UPDATE_DELAY: duration, 0-1h (default: 60s)
type WorkerConfig struct {
	Enabled bool

	// CronSchedule is evaluated in Timezone.
	CronSchedule string
	Timezone     string

	// RunTimeout bounds one full walk over the active sources.
	RunTimeout time.Duration

	// RunOnStart triggers one walk immediately when the scheduler starts.
	RunOnStart bool

	// UpdateDelay is the pause after each successfully refreshed source.
	UpdateDelay time.Duration
}

// DefaultConfig runs twice a day at 05:35 and 17:35 China Standard Time.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		Enabled:      true,
		CronSchedule: "35 5,17 * * *",
		Timezone:     "Asia/Shanghai",
		RunTimeout:   6 * time.Hour,
		UpdateDelay:  60 * time.Second,
	}
}

func validateRunTimeout(d time.Duration) error {
	return config.ValidateDurationRange(d, time.Minute, 24*time.Hour)
}

func validateUpdateDelay(d time.Duration) error {
	return config.ValidateDurationRange(d, 0, time.Hour)
}

// Validate collects every invalid field into one error.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateRunTimeout(c.RunTimeout); err != nil {
		errs = append(errs, fmt.Errorf("run timeout: %w", err))
	}
	if err := validateUpdateDelay(c.UpdateDelay); err != nil {
		errs = append(errs, fmt.Errorf("update delay: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv is fail-open: a value that does not validate is replaced
// by its default, logged, and counted in the fallback metric. The returned
// config is always valid.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	d := DefaultConfig()
	fallbackApplied := false

	cfg := WorkerConfig{
		Enabled:    config.GetEnvBool("CRON_ENABLED", d.Enabled),
		RunOnStart: config.GetEnvBool("CRON_RUN_ON_START", d.RunOnStart),
	}

	check := func(field, envKey string, value any, err error) bool {
		if err == nil {
			return true
		}
		fallbackApplied = true
		metrics.RecordFallback(field)
		logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("env_key", envKey),
			slog.Any("invalid_value", value),
			slog.Any("error", err))
		return false
	}

	cfg.CronSchedule = config.GetEnvString("CRON_EXPRESSION", d.CronSchedule)
	if !check("cron_schedule", "CRON_EXPRESSION", cfg.CronSchedule, config.ValidateCronSchedule(cfg.CronSchedule)) {
		cfg.CronSchedule = d.CronSchedule
	}

	cfg.Timezone = config.GetEnvString("CRON_TIMEZONE", d.Timezone)
	if !check("timezone", "CRON_TIMEZONE", cfg.Timezone, config.ValidateTimezone(cfg.Timezone)) {
		cfg.Timezone = d.Timezone
	}

	cfg.RunTimeout = config.GetEnvDuration("CRON_RUN_TIMEOUT", d.RunTimeout)
	if !check("run_timeout", "CRON_RUN_TIMEOUT", cfg.RunTimeout, validateRunTimeout(cfg.RunTimeout)) {
		cfg.RunTimeout = d.RunTimeout
	}

	cfg.UpdateDelay = config.GetEnvDuration("FEED_UPDATE_DELAY", d.UpdateDelay)
	if !check("update_delay", "FEED_UPDATE_DELAY", cfg.UpdateDelay, validateUpdateDelay(cfg.UpdateDelay)) {
		cfg.UpdateDelay = d.UpdateDelay
	}

	metrics.SetFallbackActive(fallbackApplied)
	return &cfg
}
