package fulltext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/observability/metrics"
	"feedrelay/internal/observability/tracing"
)

// ContentFetcher downloads a page and returns its (optionally sanitized) body.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Cache stores article bodies by article identifier. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(id string) (string, bool)
	Set(id, body string)
}

// Service resolves article identifiers to full-text bodies.
// Concurrent misses for the same id may both fetch; the later write wins.
type Service struct {
	cache   Cache
	fetcher ContentFetcher
	baseURL string
	logger  *slog.Logger
}

// NewService builds a Service reading pages from entity.ArticleURL(baseURL, id).
func NewService(cache Cache, fetcher ContentFetcher, baseURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:   cache,
		fetcher: fetcher,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Content returns the body for id, or FailurePlaceholder when it cannot be fetched.
// It never fails.
func (s *Service) Content(ctx context.Context, id string) string {
	body, err := s.Fetch(ctx, id)
	if err != nil {
		s.logger.Error("full text unavailable",
			slog.String("article_id", id),
			slog.Any("error", err))
		return FailurePlaceholder
	}
	return body
}

// Fetch returns the body for id, consulting the cache first and storing
// successful fetches. Failures are wrapped in ErrFetchFailed and leave the cache untouched.
func (s *Service) Fetch(ctx context.Context, id string) (body string, err error) {
	if body, ok := s.cache.Get(id); ok {
		return body, nil
	}

	ctx, span := tracing.StartSpan(ctx, "fulltext.fetch", attribute.String("article.id", id))
	defer func() { tracing.EndSpan(span, err) }()

	url := entity.ArticleURL(s.baseURL, id)
	start := time.Now()
	body, err = s.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	metrics.RecordContentFetchSuccess(time.Since(start), len(body))

	s.cache.Set(id, body)
	return body, nil
}
