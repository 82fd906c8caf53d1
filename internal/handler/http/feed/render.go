// Package feed exposes rendered feeds over HTTP.
package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"feedrelay/internal/handler/http/respond"
	"feedrelay/internal/observability/logging"
	feedUC "feedrelay/internal/usecase/feed"
)

// RenderHandler serves GET /feeds/{id}.{type}.
type RenderHandler struct {
	Svc    Generator
	Logger *slog.Logger
}

func (h RenderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, format := splitFeed(r.PathValue("feed"))

	q := r.URL.Query()
	limit, err := positiveInt(q.Get("limit"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("limit %w", err))
		return
	}
	page, err := positiveInt(q.Get("page"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("page %w", err))
		return
	}

	doc, err := h.Svc.Generate(r.Context(), feedUC.Request{
		SourceID:     id,
		Format:       format,
		Limit:        limit,
		Page:         page,
		Mode:         q.Get("mode"),
		TitleInclude: q.Get("title_include"),
		TitleExclude: q.Get("title_exclude"),
	})
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, feedUC.ErrSourceNotFound) {
			code = http.StatusBadRequest
		}
		respond.SafeError(w, code, err)
		return
	}

	w.Header().Set("Content-Type", doc.MimeType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		logging.WithRequestID(r.Context(), h.logger()).Warn("feed write failed",
			slog.String("feed", id),
			slog.Any("error", err))
	}
}

func (h RenderHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// splitFeed separates "id.type" at the last dot. A missing type is returned
// empty and renders as the default format.
func splitFeed(s string) (id, format string) {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// positiveInt parses an optional query integer; empty means 0 (use default).
func positiveInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}
