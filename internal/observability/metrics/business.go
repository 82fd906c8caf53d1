package metrics

import (
	"time"
)

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordFeedRender records a completed feed render.
// Result should be one of "success", "not_found" or "error".
func RecordFeedRender(format, mode, result string, duration time.Duration, items int) {
	FeedRendersTotal.WithLabelValues(format, result).Inc()
	if result != "success" {
		return
	}
	FeedRenderDuration.WithLabelValues(format, mode).Observe(duration.Seconds())
	FeedItemsRendered.Observe(float64(items))
}

// RecordCacheLookup records a content cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		ContentCacheRequestsTotal.WithLabelValues("hit").Inc()
		return
	}
	ContentCacheRequestsTotal.WithLabelValues("miss").Inc()
}

// UpdateCacheEntries sets the current number of cached entries.
func UpdateCacheEntries(n int) {
	ContentCacheEntries.Set(float64(n))
}

// RecordCacheEviction records one capacity eviction.
func RecordCacheEviction() {
	ContentCacheEvictionsTotal.Inc()
}

// RecordContentFetchSuccess records a successful content fetch operation.
// This tracks both the duration and size of fetched content.
//
// Example:
//
//	start := time.Now()
//	body, err := fetcher.Fetch(ctx, url)
//	if err == nil {
//	    RecordContentFetchSuccess(time.Since(start), len(body))
//	}
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation,
// after all retries were exhausted.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordSourceRefresh records one source refresh during a scheduled walk or manual trigger.
func RecordSourceRefresh(ok bool, duration time.Duration) {
	SourceRefreshTotal.WithLabelValues(result(ok)).Inc()
	SourceRefreshDuration.Observe(duration.Seconds())
}

// RecordArticlesIngested records the number of new articles stored for a source.
func RecordArticlesIngested(sourceID string, count int) {
	if count <= 0 {
		return
	}
	ArticlesIngestedTotal.WithLabelValues(sourceID).Add(float64(count))
}
