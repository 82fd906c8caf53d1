// Package pathutil maps request paths to route templates so metric labels
// stay bounded no matter how many sources exist.
package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern maps matching paths to Template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/feeds/[^/]+/refresh$`), Template: "/feeds/:id/refresh"},
	{Pattern: regexp.MustCompile(`^/feeds/[^/]+$`), Template: "/feeds/:feed"},
}

var staticPaths = map[string]struct{}{
	"/":             {},
	"/feeds":        {},
	"/health":       {},
	"/health/ready": {},
	"/health/live":  {},
	"/metrics":      {},
}

// OtherPath labels every path that is neither static nor templated.
const OtherPath = "other"

// NormalizePath strips the query and a trailing slash, then returns the
// static path, its template, or OtherPath.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	if _, ok := staticPaths[path]; ok {
		return path
	}
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return OtherPath
}

// GetExpectedCardinality is the upper bound of distinct labels NormalizePath produces.
func GetExpectedCardinality() int {
	return len(pathPatterns) + len(staticPaths) + 1
}
