package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/service"
)

// MatchHandler handles match endpoints.
type MatchHandler struct {
	matches *service.MatchService
	logger  *slog.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(matches *service.MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{matches: matches, logger: logger}
}

type createMatchRequest struct {
	Player1ID uuid.UUID `json:"player1_id"`
	Player2ID uuid.UUID `json:"player2_id"`
}

// Create handles POST /api/matches.
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.Player1ID == uuid.Nil || req.Player2ID == uuid.Nil {
		RespondError(w, domain.ErrValidation("player1_id and player2_id are required"))
		return
	}
	match, err := h.matches.Create(r.Context(), req.Player1ID, req.Player2ID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, match)
}

// Get handles GET /api/matches/{id}.
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "match")
	if err != nil {
		RespondError(w, err)
		return
	}
	match, err := h.matches.Get(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, match)
}

type reportMatchRequest struct {
	WinnerID   uuid.UUID  `json:"winner_id"`
	ReportedBy *uuid.UUID `json:"reported_by,omitempty"`
}

type reportMatchResponse struct {
	*service.ReportResult
	PrizeError string `json:"prize_error,omitempty"`
}

// Report handles POST /api/matches/{id}/report. A failed prize evaluation
// does not undo the result: the match is returned with prize_error set.
func (h *MatchHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "match")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req reportMatchRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.WinnerID == uuid.Nil {
		RespondError(w, domain.ErrValidation("winner_id is required"))
		return
	}

	result, err := h.matches.Report(r.Context(), id, req.WinnerID, req.ReportedBy)
	var prizeErr *service.PrizeEvaluationError
	switch {
	case errors.As(err, &prizeErr):
		h.logger.Warn("match reported without prize evaluation",
			"match_id", id,
			"request_id", GetRequestID(r.Context()),
			"error", prizeErr.Err,
		)
		RespondJSON(w, http.StatusOK, reportMatchResponse{
			ReportResult: result,
			PrizeError:   "prize evaluation pending",
		})
	case err != nil:
		RespondError(w, err)
	default:
		RespondJSON(w, http.StatusOK, reportMatchResponse{ReportResult: result})
	}
}

// Cancel handles DELETE /api/matches/{id}.
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "match")
	if err != nil {
		RespondError(w, err)
		return
	}
	match, err := h.matches.Cancel(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, match)
}

// ListPending handles GET /api/matches/pending.
func (h *MatchHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.ListPending(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(matches))
}

// ListRecent handles GET /api/matches/recent?limit=N.
func (h *MatchHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			RespondError(w, domain.ErrValidation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	matches, err := h.matches.ListRecent(r.Context(), limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(matches))
}

// ListByPlayer handles GET /api/matches/player/{playerID}.
func (h *MatchHandler) ListByPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "playerID", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	matches, err := h.matches.ListByPlayer(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(matches))
}

// WeeklyStats handles GET /api/matches/stats/{playerID}?week_start=YYYY-MM-DD.
func (h *MatchHandler) WeeklyStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "playerID", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	week, err := weekStartQuery(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	stats, err := h.matches.WeeklyStats(r.Context(), id, week)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
