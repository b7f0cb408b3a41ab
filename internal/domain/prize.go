package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrizeType is a weekly prize category.
type PrizeType string

const (
	PrizeThreeWins   PrizeType = "three_wins"
	PrizeThreeLosses PrizeType = "three_losses"
)

// PrizeThreshold is the weekly tally that unlocks a prize category.
const PrizeThreshold = 3

// Label returns the human-readable category name.
func (t PrizeType) Label() string {
	switch t {
	case PrizeThreeWins:
		return "3 wins"
	case PrizeThreeLosses:
		return "3 losses"
	}
	return string(t)
}

// Prize represents a prizes row.
type Prize struct {
	ID        uuid.UUID `json:"id"`
	PlayerID  uuid.UUID `json:"player_id"`
	PrizeType PrizeType `json:"prize_type"`
	WeekStart time.Time `json:"week_start"`
	EarnedAt  time.Time `json:"earned_at"`
	Claimed   bool      `json:"claimed"`
}

// Eligibility is the outcome of a prize evaluation.
type Eligibility struct {
	Eligible bool      `json:"eligible"`
	Category PrizeType `json:"category,omitempty"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`
}

// PrizeCategory picks the category unlocked by a weekly tally, wins first.
// The bool is false if neither threshold is reached.
func PrizeCategory(wins, losses int) (PrizeType, bool) {
	switch {
	case wins >= PrizeThreshold:
		return PrizeThreeWins, true
	case losses >= PrizeThreshold:
		return PrizeThreeLosses, true
	}
	return "", false
}
