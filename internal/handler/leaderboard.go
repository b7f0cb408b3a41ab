package handler

import (
	"net/http"
	"time"

	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/service"
)

// LeaderboardHandler serves standings and prize maintenance endpoints.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	prizes      *service.PrizeService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService, prizes *service.PrizeService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, prizes: prizes}
}

// Get handles GET /api/leaderboard?office=.
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Compute(r.Context(), r.URL.Query().Get("office"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(entries))
}

// Reconcile handles POST /api/prizes/reconcile?week_start=YYYY-MM-DD.
// Defaults to the current week.
func (h *LeaderboardHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	week, err := weekStartQuery(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if week == nil {
		current := h.prizes.CurrentWeek()
		week = &current
	}
	result, err := h.prizes.Reconcile(r.Context(), *week)
	if err != nil && result == nil {
		RespondError(w, err)
		return
	}
	// Per-player failures are reported in the counts.
	RespondJSON(w, http.StatusOK, result)
}

// weekStartQuery reads an optional week_start query parameter.
func weekStartQuery(r *http.Request) (*time.Time, error) {
	v := r.URL.Query().Get("week_start")
	if v == "" {
		return nil, nil
	}
	week, err := domain.ParseWeekStart(v)
	if err != nil {
		return nil, domain.ErrValidation("week_start must be YYYY-MM-DD")
	}
	return &week, nil
}
