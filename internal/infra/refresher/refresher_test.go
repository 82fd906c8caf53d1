package refresher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedrelay/internal/infra/adapter/persistence/postgrest"
	"feedrelay/internal/infra/adapter/persistence/postgrest/postgresttest"
	"feedrelay/internal/repository"
	"feedrelay/internal/resilience/retry"
)

const upstreamRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Source One</title>
  <link>https://mp.example.com/</link>
  <description>upstream</description>
  <item>
    <title>First post</title>
    <guid>https://mp.weixin.qq.com/s/abc123</guid>
    <pubDate>Tue, 14 Nov 2023 22:13:20 GMT</pubDate>
  </item>
  <item>
    <title> Second post </title>
    <link>https://mp.weixin.qq.com/s/def456/</link>
    <pubDate>Tue, 14 Nov 2023 22:30:00 GMT</pubDate>
    <enclosure url="https://img.example.com/def.png" type="image/png" length="0"/>
  </item>
  <item>
    <guid>untitled-1</guid>
  </item>
</channel>
</rss>`

var fixedNow = time.Unix(1800000000, 0)

func newStore(t *testing.T) repository.Store {
	t.Helper()
	srv := postgresttest.NewServer()
	t.Cleanup(srv.Close)
	store := postgrest.NewStore(postgrest.NewClient(postgrest.Config{
		URL: srv.URL, APIKey: "anon", TablePrefix: "wx_",
	}, srv.Client()))
	_, err := store.CreateSource(context.Background(), repository.SourceCreate{ID: "S1", Name: "Source One"})
	require.NoError(t, err)
	return store
}

func newRefresher(t *testing.T, upstream *httptest.Server, store Store) *FeedRefresher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = upstream.URL + "/feeds/"
	r := New(cfg, store, upstream.Client(), nil)
	r.now = func() time.Time { return fixedNow }
	r.retryConfig.InitialDelay = time.Millisecond
	r.retryConfig.MaxDelay = time.Millisecond
	return r
}

func TestRefresh_StoresNewArticles(t *testing.T) {
	var gotPath, gotUA string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(upstreamRSS))
	}))
	defer upstream.Close()

	store := newStore(t)
	r := newRefresher(t, upstream, store)
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx, "S1"))
	assert.Equal(t, "/feeds/S1", gotPath)
	assert.Equal(t, "feedrelay", gotUA)

	articles, err := store.ListArticlesBySource(ctx, "S1", 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "def456", articles[0].ID)
	assert.Equal(t, "Second post", articles[0].Title)
	assert.Equal(t, "https://img.example.com/def.png", articles[0].ImageURL)
	assert.Equal(t, int64(1700001000), articles[0].PublishedAt)
	assert.Equal(t, "abc123", articles[1].ID)
	assert.Equal(t, int64(1700000000), articles[1].PublishedAt)

	src, err := store.GetSource(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Unix(), src.LastSyncedAt)
	assert.Equal(t, int64(1700001000), src.UpdatedAt)

	// a second pull finds nothing new
	require.NoError(t, r.Refresh(ctx, "S1"))
	articles, err = store.ListArticlesBySource(ctx, "S1", 10)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestRefresh_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer upstream.Close()

	err := newRefresher(t, upstream, newStore(t)).Refresh(context.Background(), "S1")
	require.Error(t, err)

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRefresh_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(upstreamRSS))
	}))
	defer upstream.Close()

	require.NoError(t, newRefresher(t, upstream, newStore(t)).Refresh(context.Background(), "S1"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRefresh_UnparsableFeed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("definitely not a feed"))
	}))
	defer upstream.Close()

	assert.Error(t, newRefresher(t, upstream, newStore(t)).Refresh(context.Background(), "S1"))
}

func TestRefresh_UnknownSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>x</title></channel></rss>`))
	}))
	defer upstream.Close()

	assert.Error(t, newRefresher(t, upstream, newStore(t)).Refresh(context.Background(), "missing"))
}

func TestArticleID(t *testing.T) {
	tests := []struct {
		name string
		item gofeed.Item
		want string
	}{
		{"guid url", gofeed.Item{GUID: "https://mp.weixin.qq.com/s/abc"}, "abc"},
		{"plain guid", gofeed.Item{GUID: "abc-1", Link: "https://x.example.com/s/zzz"}, "abc-1"},
		{"link fallback", gofeed.Item{Link: "https://x.example.com/s/zzz/"}, "zzz"},
		{"bare host", gofeed.Item{Link: "https://x.example.com/"}, ""},
		{"nothing", gofeed.Item{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, articleID(&tt.item))
		})
	}
}

func TestPublishedAt_Fallbacks(t *testing.T) {
	pub := time.Unix(100, 0)
	upd := time.Unix(200, 0)

	assert.Equal(t, int64(100), publishedAt(&gofeed.Item{PublishedParsed: &pub, UpdatedParsed: &upd}, fixedNow))
	assert.Equal(t, int64(200), publishedAt(&gofeed.Item{UpdatedParsed: &upd}, fixedNow))
	assert.Equal(t, fixedNow.Unix(), publishedAt(&gofeed.Item{}, fixedNow))
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled())
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "ftp://example.com"
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "https://rss.example.com/feeds"
	assert.NoError(t, cfg.Validate())

	t.Setenv("UPSTREAM_FEED_URL", "")
	loaded, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, loaded.Enabled())

	t.Setenv("UPSTREAM_FEED_URL", "https://rss.example.com/feeds")
	t.Setenv("UPSTREAM_FEED_TIMEOUT", "5s")
	loaded, err = LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, loaded.Timeout)

	t.Setenv("UPSTREAM_FEED_URL", "not-a-url")
	_, err = LoadConfigFromEnv()
	assert.Error(t, err)
}
