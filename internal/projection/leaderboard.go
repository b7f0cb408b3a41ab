package projection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/officeladder/ladder/internal/domain"
)

const (
	leaderboardKeyPrefix = "projection:leaderboard:"
	leaderboardGenPrefix = "projection:leaderboard-gen:"
)

// allOffices is the cache key suffix for the unfiltered leaderboard.
const allOffices = "_all"

func officeSuffix(office string) string {
	if office == "" {
		return allOffices
	}
	return office
}

// LeaderboardKey returns the cache key for one office view at a generation.
// An empty office is the all-offices view.
func LeaderboardKey(office string, gen int64) string {
	return leaderboardKeyPrefix + officeSuffix(office) + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(office string) string {
	return leaderboardGenPrefix + officeSuffix(office)
}

// LeaderboardGeneration returns the current generation of an office view.
// Every invalidation bumps it, so a leaderboard computed before an
// invalidation is stored under a key no reader asks for again.
func LeaderboardGeneration(ctx context.Context, store Store, office string) (int64, error) {
	data, err := store.Get(ctx, generationKey(office))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse leaderboard generation: %w", err)
	}
	return gen, nil
}

// PutLeaderboard caches a leaderboard computed at generation gen.
func PutLeaderboard(ctx context.Context, store Store, office string, gen int64, entries []domain.LeaderboardEntry, ttl time.Duration) error {
	return SetJSON(ctx, store, LeaderboardKey(office, gen), entries, ttl)
}

// GetLeaderboard returns the leaderboard cached at generation gen or an
// ErrMiss-wrapped error.
func GetLeaderboard(ctx context.Context, store Store, office string, gen int64) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	if err := GetJSON(ctx, store, LeaderboardKey(office, gen), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// InvalidateLeaderboard bumps the generation of the office view and the
// all-offices view and drops the entries they replace. An empty office
// touches only the latter.
func InvalidateLeaderboard(ctx context.Context, store Store, office string) error {
	views := []string{""}
	if office != "" {
		views = append(views, office)
	}
	stale := make([]string, 0, len(views))
	for _, view := range views {
		gen, err := store.Incr(ctx, generationKey(view))
		if err != nil {
			return err
		}
		stale = append(stale, LeaderboardKey(view, gen-1))
	}
	return store.Delete(ctx, stale...)
}
