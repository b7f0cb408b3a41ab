package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
)

// LeaderboardService ranks players by completed matches. Results are cached
// in a projection store until a mutation invalidates them or the TTL runs out.
type LeaderboardService struct {
	store  repository.Store
	cache  projection.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService. A nil cache disables caching.
func NewLeaderboardService(store repository.Store, cache projection.Store, ttl time.Duration, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Compute returns the leaderboard for one office, or every office when office
// is empty. A fill is stored under the generation read before the query, so
// an invalidation that lands mid-query leaves the stale result unreachable.
func (s *LeaderboardService) Compute(ctx context.Context, office string) ([]domain.LeaderboardEntry, error) {
	office = domain.NormalizeOffice(office)

	cache := s.cache
	var gen int64
	if cache != nil {
		var err error
		gen, err = projection.LeaderboardGeneration(ctx, cache, office)
		if err != nil {
			s.logger.Warn("leaderboard cache generation read failed", "office", office, "error", err)
			cache = nil
		}
	}
	if cache != nil {
		entries, err := projection.GetLeaderboard(ctx, cache, office, gen)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, projection.ErrMiss) {
			s.logger.Warn("leaderboard cache read failed", "office", office, "error", err)
		}
	}

	players, err := s.store.Players().ListActive(ctx, office)
	if err != nil {
		return nil, storageErr("list players", err)
	}
	matches, err := s.store.Matches().ListCompleted(ctx)
	if err != nil {
		return nil, storageErr("list completed matches", err)
	}
	entries := domain.ComputeStandings(players, matches)

	if cache != nil {
		if err := projection.PutLeaderboard(ctx, cache, office, gen, entries, s.ttl); err != nil {
			s.logger.Warn("leaderboard cache write failed", "office", office, "error", err)
		}
	}
	return entries, nil
}

// Invalidate drops cached views for the given offices and the all-offices view.
// Cache errors are logged, not returned.
func (s *LeaderboardService) Invalidate(ctx context.Context, offices ...string) {
	if s.cache == nil {
		return
	}
	if len(offices) == 0 {
		offices = []string{""}
	}
	for _, office := range offices {
		if err := projection.InvalidateLeaderboard(ctx, s.cache, office); err != nil {
			s.logger.Warn("leaderboard cache invalidation failed", "office", office, "error", err)
		}
	}
}
