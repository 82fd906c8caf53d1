package feed

import "strings"

// Format is a syndication output format.
type Format string

const (
	FormatAtom Format = "atom"
	FormatRSS  Format = "rss"
	FormatJSON Format = "json"
)

// ParseFormat maps a type token to a Format. Unknown tokens yield FormatAtom.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatRSS, FormatJSON:
		return f
	default:
		return FormatAtom
	}
}

// MimeType returns the Content-Type for documents of this format.
func (f Format) MimeType() string {
	switch f {
	case FormatRSS:
		return "application/rss+xml; charset=utf-8"
	case FormatJSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/atom+xml; charset=utf-8"
	}
}
