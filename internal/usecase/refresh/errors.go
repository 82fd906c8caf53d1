// Package refresh walks the active sources and asks a Refresher to pull new
// articles for each one, pacing the walk and isolating per-source failures.
package refresh

import "errors"

var (
	// ErrAlreadyRunning is returned by RefreshAll while another walk is in progress.
	ErrAlreadyRunning = errors.New("refresh already running")

	// ErrRefreshPanic wraps a panic recovered from a Refresher.
	ErrRefreshPanic = errors.New("refresher panicked")
)
