// Package fetcher retrieves article pages from the content origin and
// reduces them to a sanitized HTML body.
package fetcher

import "errors"

// Sentinel errors for content fetching operations.
var (
	// ErrInvalidURL indicates that the URL is malformed or uses an unsupported scheme.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP indicates that the URL resolves to a private, loopback or link-local address.
	ErrPrivateIP = errors.New("URL resolves to private IP address")

	// ErrTooManyRedirects indicates that the redirect chain exceeded MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates that the response body exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNoContent indicates that no article region could be extracted from the page.
	ErrNoContent = errors.New("no article content found")
)
