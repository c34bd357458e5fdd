package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

type HistoryLister interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]notification.HistoryRecord, error)
}

type HistoryAPI struct {
	History HistoryLister
	Logger  *slog.Logger
}

func NewHistoryAPI(history HistoryLister, logger *slog.Logger) *HistoryAPI {
	return &HistoryAPI{
		History: history,
		Logger:  logger.With("component", "HistoryAPI"),
	}
}

// ListForUser handles GET /api/v1/users/{userID}/history?limit=N. A missing
// limit falls back to the recorder's default.
func (api *HistoryAPI) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.WriteJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := api.History.ListForUser(r.Context(), userID, limit)
	if err != nil {
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	writeOK(w, "", records)
}
