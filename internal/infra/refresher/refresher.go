// Package refresher pulls a source's upstream feed and stores the new articles.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/observability/metrics"
	"feedrelay/internal/repository"
	"feedrelay/internal/resilience/circuitbreaker"
	"feedrelay/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// Store is the subset of the persistence contract a refresh writes to.
type Store interface {
	CreateArticles(ctx context.Context, in []repository.ArticleCreate) (int, error)
	UpdateSource(ctx context.Context, id string, in repository.SourceUpdate) (*entity.Source, error)
}

// FeedRefresher fetches {BaseURL}/{sourceId}, parses it with gofeed and
// batch-inserts the items. Already stored articles are skipped.
type FeedRefresher struct {
	client         *http.Client
	store          Store
	cfg            Config
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	now            func() time.Time
	logger         *slog.Logger
}

// New builds a FeedRefresher. A nil client gets one with cfg.Timeout.
func New(cfg Config, store Store, client *http.Client, logger *slog.Logger) *FeedRefresher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedRefresher{
		client:         client,
		store:          store,
		cfg:            cfg,
		circuitBreaker: circuitbreaker.New(circuitbreaker.UpstreamFeedConfig()),
		retryConfig:    retry.UpstreamFeedConfig(),
		now:            time.Now,
		logger:         logger,
	}
}

// CircuitBreaker exposes the breaker guarding upstream pulls.
func (r *FeedRefresher) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}

// Refresh implements refresh.Refresher.
func (r *FeedRefresher) Refresh(ctx context.Context, sourceID string) error {
	feedURL := strings.TrimRight(r.cfg.BaseURL, "/") + "/" + url.PathEscape(sourceID)

	var feed *gofeed.Feed
	err := retry.WithBackoff(ctx, r.retryConfig, func() error {
		res, err := r.circuitBreaker.Execute(func() (interface{}, error) {
			return r.fetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				r.logger.Warn("upstream feed circuit breaker open, request rejected",
					slog.String("source_id", sourceID),
					slog.String("state", r.circuitBreaker.State().String()))
			}
			return err
		}
		feed = res.(*gofeed.Feed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch upstream feed %s: %w", sourceID, err)
	}

	now := r.now()
	articles, latest := toArticles(sourceID, feed.Items, now)

	inserted, err := r.store.CreateArticles(ctx, articles)
	if err != nil {
		return fmt.Errorf("store articles for %s: %w", sourceID, err)
	}
	metrics.RecordArticlesIngested(sourceID, inserted)

	synced := now.Unix()
	update := repository.SourceUpdate{LastSyncedAt: &synced}
	if latest > 0 {
		update.UpdatedAt = &latest
	}
	if _, err := r.store.UpdateSource(ctx, sourceID, update); err != nil {
		return fmt.Errorf("update source %s: %w", sourceID, err)
	}

	r.logger.Debug("upstream feed stored",
		slog.String("source_id", sourceID),
		slog.Int("items", len(feed.Items)),
		slog.Int("inserted", inserted))
	return nil
}

func (r *FeedRefresher) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	return gofeed.NewParser().Parse(io.LimitReader(resp.Body, r.cfg.MaxBodySize))
}

// toArticles maps feed items to create payloads and returns the newest
// publish time among them. Items without a usable id or title are dropped.
func toArticles(sourceID string, items []*gofeed.Item, now time.Time) ([]repository.ArticleCreate, int64) {
	out := make([]repository.ArticleCreate, 0, len(items))
	var latest int64
	for _, it := range items {
		a := repository.ArticleCreate{
			ID:          articleID(it),
			SourceID:    sourceID,
			Title:       strings.TrimSpace(it.Title),
			ImageURL:    imageURL(it),
			PublishedAt: publishedAt(it, now),
		}
		if err := a.Article().Validate(); err != nil {
			continue
		}
		if a.PublishedAt > latest {
			latest = a.PublishedAt
		}
		out = append(out, a)
	}
	return out, latest
}

// articleID prefers the GUID, then the link. URL-shaped values are reduced
// to their last path segment so ids line up with the article link template.
func articleID(it *gofeed.Item) string {
	raw := strings.TrimSpace(it.GUID)
	if raw == "" {
		raw = strings.TrimSpace(it.Link)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

func imageURL(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

func publishedAt(it *gofeed.Item, now time.Time) int64 {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.Unix()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.Unix()
	default:
		return now.Unix()
	}
}
