package domain

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// LeaderboardEntry is one player's all-time record.
type LeaderboardEntry struct {
	PlayerID   uuid.UUID `json:"player_id"`
	Name       string    `json:"name"`
	Office     string    `json:"office"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	TotalGames int       `json:"total_games"`
	WinRate    float64   `json:"win_rate"`
}

// ComputeStandings tallies completed matches for each player and ranks them
// by wins, then total games, then name. Players without games are kept with
// zero counts. Matches that are not completed are ignored.
func ComputeStandings(players []Player, matches []Match) []LeaderboardEntry {
	index := make(map[uuid.UUID]int, len(players))
	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		index[p.ID] = i
		entries[i] = LeaderboardEntry{
			PlayerID:  p.ID,
			Name:      p.Name,
			Office:    p.Office,
			AvatarURL: p.AvatarURL,
		}
	}

	tally := func(id uuid.UUID, m *Match) {
		i, ok := index[id]
		if !ok {
			return
		}
		e := &entries[i]
		e.TotalGames++
		switch {
		case m.WinnerID == nil:
		case *m.WinnerID == id:
			e.Wins++
		default:
			e.Losses++
		}
	}
	for i := range matches {
		m := &matches[i]
		if m.Status != MatchCompleted {
			continue
		}
		tally(m.Player1ID, m)
		tally(m.Player2ID, m)
	}

	for i := range entries {
		entries[i].WinRate = WinRate(entries[i].Wins, entries[i].TotalGames)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.TotalGames != b.TotalGames {
			return a.TotalGames > b.TotalGames
		}
		return a.Name < b.Name
	})
	return entries
}

// WinRate is wins as a percentage of games, rounded to one decimal.
func WinRate(wins, games int) float64 {
	if games == 0 {
		return 0
	}
	return math.Round(float64(wins)*1000/float64(games)) / 10
}
