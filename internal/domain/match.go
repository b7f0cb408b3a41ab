package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// Match represents a matches row.
type Match struct {
	ID          uuid.UUID   `json:"id"`
	Player1ID   uuid.UUID   `json:"player1_id"`
	Player2ID   uuid.UUID   `json:"player2_id"`
	WinnerID    *uuid.UUID  `json:"winner_id,omitempty"`
	ReportedBy  *uuid.UUID  `json:"reported_by,omitempty"`
	Status      MatchStatus `json:"status"`
	WeekStart   time.Time   `json:"week_start"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// HasParticipant reports whether playerID is one of the two players.
func (m *Match) HasParticipant(playerID uuid.UUID) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Opponent returns the other participant. The bool is false if playerID
// did not play in m.
func (m *Match) Opponent(playerID uuid.UUID) (uuid.UUID, bool) {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID, true
	case m.Player2ID:
		return m.Player1ID, true
	}
	return uuid.Nil, false
}

// Complete transitions a pending match to completed with the given winner.
func (m *Match) Complete(winnerID uuid.UUID, reportedBy *uuid.UUID, at time.Time) error {
	if m.Status != MatchPending {
		return ErrMatchNotPending(m.Status)
	}
	if !m.HasParticipant(winnerID) {
		return ErrInvalidWinner()
	}
	w := winnerID
	m.WinnerID = &w
	m.ReportedBy = reportedBy
	m.Status = MatchCompleted
	m.CompletedAt = &at
	return nil
}

// Cancel transitions a pending match to cancelled.
func (m *Match) Cancel() error {
	if m.Status != MatchPending {
		return ErrMatchNotPending(m.Status)
	}
	m.Status = MatchCancelled
	return nil
}

// MatchDetail is a match joined with participant names for display.
type MatchDetail struct {
	Match
	Player1Name   string  `json:"player1_name"`
	Player2Name   string  `json:"player2_name"`
	WinnerName    *string `json:"winner_name,omitempty"`
	Player1Avatar *string `json:"player1_avatar,omitempty"`
	Player2Avatar *string `json:"player2_avatar,omitempty"`
}

// WeeklyStats is a player's win/loss tally for one prize window.
type WeeklyStats struct {
	PlayerID  uuid.UUID `json:"player_id"`
	WeekStart time.Time `json:"week_start"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
}

// GamesPlayed is wins plus losses.
func (s WeeklyStats) GamesPlayed() int {
	return s.Wins + s.Losses
}
