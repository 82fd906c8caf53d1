// Package resilience holds the failure-handling helpers shared by every
// outbound call: the content fetcher, the upstream feed refresher and the
// PostgREST table client.
//
//   - circuitbreaker: named gobreaker wrappers with per-collaborator presets
//   - retry: linear or exponential backoff around a single operation
//
// Typical composition, retry outside and breaker inside:
//
//	cb := circuitbreaker.New(circuitbreaker.UpstreamFeedConfig())
//	err := retry.WithBackoff(ctx, retry.UpstreamFeedConfig(), func() error {
//	    _, err := cb.Execute(func() (interface{}, error) {
//	        return nil, pull(ctx)
//	    })
//	    return err
//	})
package resilience
