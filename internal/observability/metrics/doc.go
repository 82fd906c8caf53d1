// Package metrics declares the process-wide Prometheus collectors and the
// Record* helpers that feed them: HTTP traffic, feed renders, the content
// cache, content fetches, source refreshes and article ingestion.
//
// Collectors register on the default registry at init and are served by
// the /metrics handler.
//
//	start := time.Now()
//	doc, err := svc.Generate(ctx, req)
//	metrics.RecordFeedRender("atom", "fulltext", "success", time.Since(start), len(items))
package metrics
