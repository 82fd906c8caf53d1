// Package fulltext provides sanitized article bodies through a read-through cache.
package fulltext

import "errors"

// ErrFetchFailed wraps any failure to obtain an article body from the content origin.
var ErrFetchFailed = errors.New("full text fetch failed")

// FailurePlaceholder is returned by Service.Content in place of a body that
// could not be fetched. It is never cached.
const FailurePlaceholder = "Failed to fetch the full text, please retry later."
