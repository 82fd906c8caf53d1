package feed

import (
	"context"
	"log/slog"
	"net/http"

	feedUC "feedrelay/internal/usecase/feed"
)

// Generator is the feed use case as seen by the transport.
type Generator interface {
	Generate(ctx context.Context, req feedUC.Request) (*feedUC.Document, error)
	ListFeeds(ctx context.Context) ([]feedUC.Info, error)
}

// Refresher triggers an immediate refresh of one source.
type Refresher interface {
	RefreshOne(ctx context.Context, id string) error
}

// Register mounts the feed routes. A nil refresher leaves the refresh route
// unregistered.
func Register(mux *http.ServeMux, svc Generator, refresher Refresher, logger *slog.Logger) {
	mux.Handle("GET    /feeds", ListHandler{Svc: svc})
	mux.Handle("GET    /feeds/{feed}", RenderHandler{Svc: svc, Logger: logger})
	if refresher != nil {
		mux.Handle("POST   /feeds/{id}/refresh", RefreshHandler{Svc: refresher, Logger: logger})
	}
}
