package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/service"
)

// QueueHandler handles matchmaking queue endpoints.
type QueueHandler struct {
	queue  *service.QueueService
	logger *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue *service.QueueService, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{queue: queue, logger: logger}
}

type joinQueueRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
	Office   string    `json:"office,omitempty"`
}

type joinQueueResponse struct {
	*service.JoinResult
	PairingError string `json:"pairing_error,omitempty"`
}

// Join handles POST /api/queue/join.
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinQueueRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.PlayerID == uuid.Nil {
		RespondError(w, domain.ErrValidation("player_id is required"))
		return
	}

	result, err := h.queue.Join(r.Context(), req.PlayerID, req.Office)
	var pairErr *service.PairingError
	switch {
	case errors.As(err, &pairErr):
		h.logger.Warn("joined queue without pairing",
			"player_id", req.PlayerID,
			"office", pairErr.Office,
			"request_id", GetRequestID(r.Context()),
			"error", pairErr.Err,
		)
		RespondJSON(w, http.StatusCreated, joinQueueResponse{
			JoinResult:   result,
			PairingError: "pairing pending",
		})
	case err != nil:
		RespondError(w, err)
	default:
		RespondJSON(w, http.StatusCreated, joinQueueResponse{JoinResult: result})
	}
}

type leaveQueueRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// Leave handles POST /api/queue/leave. Leaving when not queued is not an error.
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveQueueRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.PlayerID == uuid.Nil {
		RespondError(w, domain.ErrValidation("player_id is required"))
		return
	}
	removed, err := h.queue.Leave(r.Context(), req.PlayerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// List handles GET /api/queue/{office}.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	office := domain.NormalizeOffice(chi.URLParam(r, "office"))
	if office == "" {
		RespondError(w, domain.ErrValidation("office is required"))
		return
	}
	entries, err := h.queue.List(r.Context(), office)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(entries))
}
