package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFeedRender(t *testing.T) {
	before := testutil.ToFloat64(FeedRendersTotal.WithLabelValues("rss", "success"))
	RecordFeedRender("rss", "fulltext", "success", 20*time.Millisecond, 3)
	assert.Equal(t, before+1, testutil.ToFloat64(FeedRendersTotal.WithLabelValues("rss", "success")))

	notFound := testutil.ToFloat64(FeedRendersTotal.WithLabelValues("atom", "not_found"))
	RecordFeedRender("atom", "default", "not_found", time.Millisecond, 0)
	assert.Equal(t, notFound+1, testutil.ToFloat64(FeedRendersTotal.WithLabelValues("atom", "not_found")))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(ContentCacheRequestsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(ContentCacheRequestsTotal.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(ContentCacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(ContentCacheRequestsTotal.WithLabelValues("miss")))
}

func TestUpdateCacheEntries(t *testing.T) {
	UpdateCacheEntries(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(ContentCacheEntries))
}

func TestRecordContentFetch(t *testing.T) {
	ok := testutil.ToFloat64(ContentFetchAttemptsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(ContentFetchAttemptsTotal.WithLabelValues("failure"))

	RecordContentFetchSuccess(150*time.Millisecond, 2048)
	RecordContentFetchFailed(8 * time.Second)

	assert.Equal(t, ok+1, testutil.ToFloat64(ContentFetchAttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(ContentFetchAttemptsTotal.WithLabelValues("failure")))
}

func TestRecordSourceRefresh(t *testing.T) {
	tests := []struct {
		name  string
		ok    bool
		label string
	}{
		{name: "success", ok: true, label: "success"},
		{name: "failure", ok: false, label: "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SourceRefreshTotal.WithLabelValues(tt.label))
			RecordSourceRefresh(tt.ok, time.Second)
			assert.Equal(t, before+1, testutil.ToFloat64(SourceRefreshTotal.WithLabelValues(tt.label)))
		})
	}
}

func TestRecordArticlesIngested(t *testing.T) {
	RecordArticlesIngested("MP_A", 3)
	RecordArticlesIngested("MP_A", 0)
	RecordArticlesIngested("MP_A", -1)
	assert.Equal(t, float64(3), testutil.ToFloat64(ArticlesIngestedTotal.WithLabelValues("MP_A")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/feeds/{feed}", "200"))
	assert.NotPanics(t, func() {
		RecordHTTPRequest("GET", "/feeds/{feed}", "200", 5*time.Millisecond, 512)
		RecordHTTPRequest("GET", "/feeds/{feed}", "200", 5*time.Millisecond, 0)
		RecordOperationDuration("list_articles", time.Millisecond)
	})
	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/feeds/{feed}", "200")))
}
