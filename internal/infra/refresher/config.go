package refresher

import (
	"fmt"
	"net/url"
	"time"

	"feedrelay/pkg/config"
)

// Config controls how upstream feeds are pulled.
type Config struct {
	// BaseURL is joined with the source id: {BaseURL}/{sourceId}.
	BaseURL string

	// Timeout bounds one upstream request.
	// Default: 30s
	Timeout time.Duration

	// MaxBodySize caps the feed document size in bytes.
	// Default: 5MB
	MaxBodySize int64

	// UserAgent is sent with every upstream request.
	UserAgent string
}

func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxBodySize: 5 * 1024 * 1024,
		UserAgent:   "feedrelay",
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if err := config.ValidatePositiveDuration(c.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive, got %d", c.MaxBodySize)
	}
	return nil
}

// Enabled reports whether an upstream is configured at all.
func (c Config) Enabled() bool {
	return c.BaseURL != ""
}

// LoadConfigFromEnv reads UPSTREAM_FEED_URL, UPSTREAM_FEED_TIMEOUT,
// UPSTREAM_FEED_MAX_BODY_SIZE and UPSTREAM_FEED_USER_AGENT.
// An empty UPSTREAM_FEED_URL yields a disabled config and no error.
func LoadConfigFromEnv() (Config, error) {
	d := DefaultConfig()
	cfg := Config{
		BaseURL:     config.GetEnvString("UPSTREAM_FEED_URL", ""),
		Timeout:     config.GetEnvDuration("UPSTREAM_FEED_TIMEOUT", d.Timeout),
		MaxBodySize: int64(config.GetEnvInt("UPSTREAM_FEED_MAX_BODY_SIZE", int(d.MaxBodySize))),
		UserAgent:   config.GetEnvString("UPSTREAM_FEED_USER_AGENT", d.UserAgent),
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("upstream feed configuration: %w", err)
	}
	return cfg, nil
}
