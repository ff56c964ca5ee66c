package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/server/responses"
)

// HistoryHandlers serve the feed session read model.
type HistoryHandlers struct {
	history      *eventstore.FeedHistoryProjection
	errorAdapter *errors.HTTPErrorAdapter
}

func NewHistoryHandlers(history *eventstore.FeedHistoryProjection) *HistoryHandlers {
	return &HistoryHandlers{history: history, errorAdapter: errors.NewHTTPErrorAdapter(slog.Default())}
}

// HandleHistory lists recent sessions. Optional query parameters: subject, limit.
func (h *HistoryHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessions := []eventstore.SessionSummary{}
	if h.history != nil {
		sessions = h.history.GetHistory()
	}

	if subject := r.URL.Query().Get("subject"); subject != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.Subject == subject {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("limit must be a non-negative integer").
				WithContext("limit", raw).Build())
			return
		}
		if limit < len(sessions) {
			sessions = sessions[:limit]
		}
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.HistoryResponse{Sessions: sessions, Count: len(sessions)})
}
