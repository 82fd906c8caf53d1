package entity

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	// maxURLLength defines the maximum allowed length for URLs.
	maxURLLength = 2048
	// maxIDLength bounds external identifiers (publisher and article ids).
	maxIDLength = 128
)

// ValidateID checks that an external identifier is non-empty, bounded and
// free of whitespace or control characters. field is reported in the error.
func ValidateID(field, id string) error {
	if id == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len(id) > maxIDLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must not exceed %d characters", maxIDLength),
		}
	}
	if strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return &ValidationError{Field: field, Message: "must not contain whitespace or control characters"}
	}
	return nil
}

// ValidateURL validates that rawURL is an absolute http or https URL.
// An empty string is rejected; callers with optional URLs check for "" first.
func ValidateURL(field, rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: field, Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("parse URL: %v", err)}
	}

	// HTTPまたはHTTPSスキームのみ許可
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: field, Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: field, Message: "URL must have a valid host"}
	}

	return nil
}
