package feed

import (
	"errors"
	"log/slog"
	"net/http"

	"feedrelay/internal/domain/entity"
	"feedrelay/internal/handler/http/respond"
	"feedrelay/internal/observability/logging"
)

// RefreshHandler serves POST /feeds/{id}/refresh.
type RefreshHandler struct {
	Svc    Refresher
	Logger *slog.Logger
}

type refreshResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := entity.ValidateID("id", id); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.RefreshOne(r.Context(), id); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logging.WithRequestID(r.Context(), logger).Info("source refreshed on demand", slog.String("source_id", id))
	respond.JSON(w, http.StatusOK, refreshResponse{ID: id, Status: "refreshed"})
}
