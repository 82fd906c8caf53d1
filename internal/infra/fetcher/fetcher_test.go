package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedrelay/internal/resilience/retry"
)

func testConfig() ContentFetchConfig {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryStep = time.Millisecond
	cfg.RequestsPerSecond = 0
	cfg.DenyPrivateIPs = false
	return cfg
}

/* ───────── 1. fetch ───────── */

func TestHTMLFetcher_Fetch_SendsBrowserHeadersAndCleans(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	out, err := NewHTMLFetcher(testConfig()).Fetch(context.Background(), srv.URL+"/s/abc")
	require.NoError(t, err)

	assert.Contains(t, got.Get("User-Agent"), "Mozilla/5.0")
	assert.Equal(t, "en-US,en;q=0.9", got.Get("Accept-Language"))
	assert.Equal(t, "navigate", got.Get("Sec-Fetch-Mode"))
	assert.Equal(t, "gzip", got.Get("Accept-Encoding"))
	assert.True(t, strings.HasPrefix(out, "<style>"))
	assert.NotContains(t, out, "data-src")
}

func TestHTMLFetcher_Fetch_RawWhenCleaningDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.CleanHTML = false
	out, err := NewHTMLFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, articlePage, out)
}

func TestHTMLFetcher_Fetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.CleanHTML = false
	out, err := NewHTMLFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTMLFetcher_Fetch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTMLFetcher(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, int32(4), calls.Load(), "one call plus three retries")
}

func TestHTMLFetcher_Fetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTMLFetcher(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTMLFetcher_Fetch_TimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.CleanHTML = false
	out, err := NewHTMLFetcher(cfg).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "late but fine", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTMLFetcher_Fetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodySize = 1024
	_, err := NewHTMLFetcher(cfg).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestHTMLFetcher_Fetch_TooManyRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRedirects = 2
	_, err := NewHTMLFetcher(cfg).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestHTMLFetcher_Fetch_RejectsPrivateHosts(t *testing.T) {
	cfg := testConfig()
	cfg.DenyPrivateIPs = true
	_, err := NewHTMLFetcher(cfg).Fetch(context.Background(), "http://127.0.0.1:1/s/abc")
	assert.ErrorIs(t, err, ErrPrivateIP)
}

func TestHTMLFetcher_Fetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryStep = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewHTMLFetcher(cfg).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

/* ───────── 2. URL validation ───────── */

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		deny    bool
		wantErr error
	}{
		{"https ok", "https://mp.weixin.qq.com/s/abc", false, nil},
		{"ftp rejected", "ftp://example.com/file", false, ErrInvalidURL},
		{"no host", "http:///path", false, ErrInvalidURL},
		{"loopback allowed when not denied", "http://127.0.0.1/x", false, nil},
		{"loopback denied", "http://127.0.0.1/x", true, ErrPrivateIP},
		{"private denied", "http://10.1.2.3/x", true, ErrPrivateIP},
		{"ipv6 loopback denied", "http://[::1]/x", true, ErrPrivateIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url, tt.deny)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("192.168.1.1")))
	assert.True(t, isPrivateIP(net.ParseIP("172.16.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("169.254.1.1")))
	assert.True(t, isPrivateIP(net.ParseIP("fe80::1")))
	assert.True(t, isPrivateIP(net.ParseIP("0.0.0.0")))
	assert.False(t, isPrivateIP(net.ParseIP("8.8.8.8")))
	assert.False(t, isPrivateIP(net.ParseIP("2001:4860:4860::8888")))
}

/* ───────── 3. config ───────── */

func TestContentFetchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ContentFetchConfig)
		wantErr bool
	}{
		{"defaults", func(*ContentFetchConfig) {}, false},
		{"zero timeout", func(c *ContentFetchConfig) { c.Timeout = 0 }, true},
		{"negative retries", func(c *ContentFetchConfig) { c.Retries = -1 }, true},
		{"too many retries", func(c *ContentFetchConfig) { c.Retries = 11 }, true},
		{"negative step", func(c *ContentFetchConfig) { c.RetryStep = -time.Second }, true},
		{"negative rps", func(c *ContentFetchConfig) { c.RequestsPerSecond = -1 }, true},
		{"tiny body", func(c *ContentFetchConfig) { c.MaxBodySize = 10 }, true},
		{"redirects", func(c *ContentFetchConfig) { c.MaxRedirects = 11 }, true},
		{"no pacing", func(c *ContentFetchConfig) { c.RequestsPerSecond = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONTENT_FETCH_TIMEOUT", "5s")
	t.Setenv("CONTENT_FETCH_RETRIES", "2")
	t.Setenv("CONTENT_FETCH_RPS", "0.5")
	t.Setenv("FEED_ENABLE_CLEAN_HTML", "false")
	t.Setenv("CONTENT_FETCH_MAX_REDIRECTS", "not-a-number")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 0.5, cfg.RequestsPerSecond)
	assert.False(t, cfg.CleanHTML)
	assert.Equal(t, 5, cfg.MaxRedirects)
	assert.Equal(t, 3, cfg.retryConfig().MaxAttempts)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("CONTENT_FETCH_RETRIES", "50")

	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
