package feed

import (
	"fmt"
	"net/url"

	"feedrelay/pkg/config"
)

const (
	// ModeFullText inlines article bodies into items.
	ModeFullText = "fulltext"

	// AllSourcesID names the virtual feed aggregating every source.
	AllSourcesID = "all"

	defaultGenerator  = "feedrelay"
	defaultLanguage   = "zh-cn"
	defaultCoverURL   = "https://r2-assets.111965.xyz/wewe-rss.png"
	defaultArticleURL = "https://mp.weixin.qq.com/s/"
)

// Config holds rendering settings.
type Config struct {
	// OriginURL is the public base of this service, used in feed links.
	OriginURL string
	// ArticleBaseURL is joined with an article id to form the item link.
	ArticleBaseURL string
	// DefaultMode applies when a request carries no mode; ModeFullText enables inlining.
	DefaultMode string
	// FallbackCoverURL is the virtual feed image when OriginURL is empty.
	FallbackCoverURL string

	Generator string
	Language  string

	DefaultLimit int
	MaxLimit     int
	// FullTextConcurrency bounds in-flight body fetches per render.
	FullTextConcurrency int
}

// DefaultConfig returns the rendering defaults.
func DefaultConfig() Config {
	return Config{
		OriginURL:           "http://localhost:8080",
		ArticleBaseURL:      defaultArticleURL,
		FallbackCoverURL:    defaultCoverURL,
		Generator:           defaultGenerator,
		Language:            defaultLanguage,
		DefaultLimit:        30,
		MaxLimit:            100,
		FullTextConcurrency: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.OriginURL != "" {
		if u, err := url.Parse(c.OriginURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("FEED_ORIGIN_URL %q must be an absolute URL", c.OriginURL)
		}
	}
	if c.DefaultLimit < 1 || c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("limits must satisfy 1 <= default (%d) <= max (%d)", c.DefaultLimit, c.MaxLimit)
	}
	if c.FullTextConcurrency < 1 {
		return fmt.Errorf("full text concurrency must be positive, got %d", c.FullTextConcurrency)
	}
	return nil
}

// LoadConfigFromEnv reads FEED_ORIGIN_URL, ARTICLE_BASE_URL, FEED_MODE,
// FEED_DEFAULT_COVER_URL, FEED_DEFAULT_LIMIT and FEED_MAX_LIMIT over the defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.OriginURL = config.GetEnvString("FEED_ORIGIN_URL", cfg.OriginURL)
	cfg.ArticleBaseURL = config.GetEnvString("ARTICLE_BASE_URL", cfg.ArticleBaseURL)
	cfg.DefaultMode = config.GetEnvString("FEED_MODE", cfg.DefaultMode)
	cfg.FallbackCoverURL = config.GetEnvString("FEED_DEFAULT_COVER_URL", cfg.FallbackCoverURL)
	cfg.DefaultLimit = config.GetEnvInt("FEED_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.MaxLimit = config.GetEnvInt("FEED_MAX_LIMIT", cfg.MaxLimit)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("feed config: %w", err)
	}
	return cfg, nil
}
