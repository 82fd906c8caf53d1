package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"feedrelay/internal/resilience/circuitbreaker"
	"feedrelay/internal/resilience/retry"
)

// browserHeaders is sent with every request; the content origin filters
// clients that do not look like a desktop browser. Accept-Encoding is left
// to the transport so responses are decompressed transparently.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "max-age=0",
	"Sec-Ch-Ua":                 `" Not A;Brand";v="99", "Chromium";v="101", "Google Chrome";v="101"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"macOS"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
	"User-Agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.4951.64 Safari/537.36",
}

// HTMLFetcher downloads article pages and returns their sanitized body.
//
// Requests are paced by a token bucket, wrapped in a circuit breaker and
// retried with linear backoff on transient failures.
//
// Thread safety: HTMLFetcher is safe for concurrent use.
type HTMLFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	sanitizer *Sanitizer
	config    ContentFetchConfig
	logger    *slog.Logger
}

// NewHTMLFetcher creates a fetcher with the given configuration.
//
// Example:
//
//	f := NewHTMLFetcher(DefaultConfig())
//	body, err := f.Fetch(ctx, "https://mp.weixin.qq.com/s/abc")
func NewHTMLFetcher(config ContentFetchConfig) *HTMLFetcher {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	f := &HTMLFetcher{
		limiter:   rate.NewLimiter(limit, 1),
		breaker:   circuitbreaker.New(circuitbreaker.ContentFetchConfig()),
		sanitizer: NewSanitizer(),
		config:    config,
		logger:    slog.Default(),
	}

	f.client = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return f
}

// CircuitBreaker exposes the breaker guarding page fetches.
func (f *HTMLFetcher) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return f.breaker
}

// Fetch downloads urlStr and returns its sanitized body, or the raw page when
// CleanHTML is disabled.
//
// Errors:
//   - ErrInvalidURL, ErrPrivateIP: the URL was rejected before any request
//   - *retry.HTTPError: the origin answered with a non-200 status
//   - ErrBodyTooLarge: the response exceeded MaxBodySize
//   - ErrNoContent: nothing could be extracted from the page
//   - gobreaker.ErrOpenState: the breaker is open after repeated failures
func (f *HTMLFetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	var page string
	var finalURL *url.URL
	err := retry.WithBackoff(ctx, f.config.retryConfig(), func() error {
		result, err := f.breaker.Execute(func() (interface{}, error) {
			return f.fetchOnce(ctx, urlStr)
		})
		if err != nil {
			return err
		}
		res := result.(fetchResult)
		page, finalURL = res.body, res.url
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Fetch %s: %w", urlStr, err)
	}

	if !f.config.CleanHTML {
		return page, nil
	}
	return f.sanitizer.Clean(page, finalURL)
}

type fetchResult struct {
	body string
	url  *url.URL
}

// fetchOnce performs a single paced GET.
func (f *HTMLFetcher) fetchOnce(ctx context.Context, urlStr string) (fetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return fetchResult{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// redirect policy failures are final
		var urlErr *url.Error
		if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, ErrTooManyRedirects) ||
			errors.Is(urlErr.Err, ErrPrivateIP) || errors.Is(urlErr.Err, ErrInvalidURL)) {
			return fetchResult{}, urlErr.Err
		}
		return fetchResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fetchResult{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return fetchResult{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return fetchResult{}, fmt.Errorf("%w: response size exceeds limit %d bytes",
			ErrBodyTooLarge, f.config.MaxBodySize)
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	f.logger.Debug("content fetched",
		slog.String("url", urlStr),
		slog.Int("bytes", len(body)))
	return fetchResult{body: string(body), url: final}, nil
}
