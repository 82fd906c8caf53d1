package feed

import (
	"net/http"

	"feedrelay/internal/handler/http/respond"
)

// ListHandler serves GET /feeds.
type ListHandler struct{ Svc Generator }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.Svc.ListFeeds(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, feeds)
}
