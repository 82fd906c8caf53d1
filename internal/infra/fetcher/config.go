package fetcher

import (
	"fmt"
	"time"

	"feedrelay/internal/resilience/retry"
	"feedrelay/pkg/config"
)

// ContentFetchConfig holds the configuration for content fetching operations.
type ContentFetchConfig struct {
	// Timeout bounds a single HTTP request, independent of the caller's context.
	// Default: 8s
	Timeout time.Duration

	// Retries is the number of additional GET attempts after a transient failure.
	// Default: 3
	Retries int

	// RetryStep is the linear backoff unit: retry n waits RetryStep*n.
	// Default: 2s
	RetryStep time.Duration

	// RequestsPerSecond paces requests toward the content origin (0 disables pacing).
	// Default: 2
	RequestsPerSecond float64

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs blocks URLs (and redirect targets) resolving to private addresses.
	// Default: true
	DenyPrivateIPs bool

	// CleanHTML enables sanitization; when false the raw page is returned.
	// Default: true
	CleanHTML bool
}

// DefaultConfig returns the default configuration for content fetching.
func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Timeout:           8 * time.Second,
		Retries:           3,
		RetryStep:         2 * time.Second,
		RequestsPerSecond: 2,
		MaxBodySize:       10 * 1024 * 1024,
		MaxRedirects:      5,
		DenyPrivateIPs:    true,
		CleanHTML:         true,
	}
}

// Validate checks if the configuration values are valid and safe.
//
// Validation rules:
//   - Timeout: > 0
//   - Retries: 0-10
//   - RetryStep: >= 0
//   - RequestsPerSecond: >= 0
//   - MaxBodySize: 1KB-100MB
//   - MaxRedirects: 0-10
func (c *ContentFetchConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	if c.Retries < 0 || c.Retries > 10 {
		return fmt.Errorf("retries must be between 0 and 10, got %d", c.Retries)
	}

	if c.RetryStep < 0 {
		return fmt.Errorf("retry step must be non-negative, got %v", c.RetryStep)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be non-negative, got %v", c.RequestsPerSecond)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	return nil
}

// retryConfig converts the retry fields to the shared backoff policy.
func (c ContentFetchConfig) retryConfig() retry.Config {
	rc := retry.ContentFetchConfig()
	rc.MaxAttempts = c.Retries + 1
	rc.Step = c.RetryStep
	return rc
}

// LoadConfigFromEnv loads configuration from environment variables.
// Unset or unparsable variables keep their defaults; the result is validated.
//
// Environment variables:
//   - CONTENT_FETCH_TIMEOUT: duration string (default: 8s)
//   - CONTENT_FETCH_RETRIES: integer (default: 3)
//   - CONTENT_FETCH_RETRY_STEP: duration string (default: 2s)
//   - CONTENT_FETCH_RPS: float (default: 2)
//   - CONTENT_FETCH_MAX_BODY_SIZE: integer in bytes (default: 10485760)
//   - CONTENT_FETCH_MAX_REDIRECTS: integer (default: 5)
//   - CONTENT_FETCH_DENY_PRIVATE_IPS: bool (default: true)
//   - FEED_ENABLE_CLEAN_HTML: bool (default: true)
func LoadConfigFromEnv() (ContentFetchConfig, error) {
	d := DefaultConfig()
	cfg := ContentFetchConfig{
		Timeout:           config.GetEnvDuration("CONTENT_FETCH_TIMEOUT", d.Timeout),
		Retries:           config.GetEnvInt("CONTENT_FETCH_RETRIES", d.Retries),
		RetryStep:         config.GetEnvDuration("CONTENT_FETCH_RETRY_STEP", d.RetryStep),
		RequestsPerSecond: config.GetEnvFloat("CONTENT_FETCH_RPS", d.RequestsPerSecond),
		MaxBodySize:       int64(config.GetEnvInt("CONTENT_FETCH_MAX_BODY_SIZE", int(d.MaxBodySize))),
		MaxRedirects:      config.GetEnvInt("CONTENT_FETCH_MAX_REDIRECTS", d.MaxRedirects),
		DenyPrivateIPs:    config.GetEnvBool("CONTENT_FETCH_DENY_PRIVATE_IPS", d.DenyPrivateIPs),
		CleanHTML:         config.GetEnvBool("FEED_ENABLE_CLEAN_HTML", d.CleanHTML),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
