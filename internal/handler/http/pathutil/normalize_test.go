package pathutil

import (
	"fmt"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/feeds", "/feeds"},
		{"/feeds/", "/feeds"},
		{"/feeds/S1.rss", "/feeds/:feed"},
		{"/feeds/all.atom?limit=5", "/feeds/:feed"},
		{"/feeds/MzA5NzM4.json/", "/feeds/:feed"},
		{"/feeds/S1/refresh", "/feeds/:id/refresh"},
		{"/health", "/health"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/wp-login.php", OtherPath},
		{"/feeds/S1/refresh/extra", OtherPath},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizePath_BoundedCardinality(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		for _, p := range []string{"/feeds/s%d.rss", "/feeds/s%d/refresh", "/random/%d"} {
			seen[NormalizePath(fmt.Sprintf(p, i))] = struct{}{}
		}
	}
	if len(seen) > GetExpectedCardinality() {
		t.Fatalf("got %d labels, expected at most %d", len(seen), GetExpectedCardinality())
	}
	if len(seen) != 3 {
		t.Fatalf("got labels %v", seen)
	}
}
