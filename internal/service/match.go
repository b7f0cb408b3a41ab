package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// MatchService drives a match from pending to completed or cancelled.
type MatchService struct {
	store       repository.Store
	prizes      *PrizeService
	leaderboard *LeaderboardService
	loc         *time.Location
	now         Clock
	logger      *slog.Logger
}

// NewMatchService creates a MatchService. loc anchors week starts; nil means time.Local.
func NewMatchService(
	store repository.Store,
	prizes *PrizeService,
	leaderboard *LeaderboardService,
	loc *time.Location,
	now Clock,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		store:       store,
		prizes:      prizes,
		leaderboard: leaderboard,
		loc:         loc,
		now:         orNow(now),
		logger:      logger,
	}
}

// ReportResult is a completed match and the winner's prize evaluation.
type ReportResult struct {
	Match *domain.Match       `json:"match"`
	Prize *domain.Eligibility `json:"prize,omitempty"`
}

// PrizeEvaluationError reports that a match was completed but the winner's
// prize evaluation failed. The match stays completed; PrizeService.Reconcile
// repairs the missing award.
type PrizeEvaluationError struct {
	MatchID  uuid.UUID
	PlayerID uuid.UUID
	Err      error
}

func (e *PrizeEvaluationError) Error() string {
	return fmt.Sprintf("match %s completed but prize evaluation for %s failed: %v", e.MatchID, e.PlayerID, e.Err)
}

func (e *PrizeEvaluationError) Unwrap() error { return e.Err }

// Create inserts a pending match between two active players of one office.
func (s *MatchService) Create(ctx context.Context, player1ID, player2ID uuid.UUID) (*domain.Match, error) {
	var match *domain.Match
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		var err error
		match, err = s.create(ctx, tx, player1ID, player2ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// create runs inside the caller's transaction so queue pairing can dequeue
// in the same commit.
func (s *MatchService) create(ctx context.Context, tx repository.Repos, player1ID, player2ID uuid.UUID) (*domain.Match, error) {
	if player1ID == player2ID {
		return nil, domain.ErrSamePlayer()
	}
	p1, err := activePlayer(ctx, tx, player1ID)
	if err != nil {
		return nil, err
	}
	p2, err := activePlayer(ctx, tx, player2ID)
	if err != nil {
		return nil, err
	}
	if p1.Office != p2.Office {
		return nil, domain.ErrOfficeMismatch(p1.Office, p2.Office)
	}

	now := s.now()
	m := &domain.Match{
		ID:        uuid.New(),
		Player1ID: player1ID,
		Player2ID: player2ID,
		Status:    domain.MatchPending,
		WeekStart: domain.WeekStart(now, s.loc),
		CreatedAt: now,
	}
	if err := tx.Matches().Insert(ctx, m); err != nil {
		return nil, storageErr("insert match", err)
	}
	if err := tx.Outbox().Insert(ctx, domain.NewMatchEvent(domain.EventMatchCreated, m, p1.Office)); err != nil {
		return nil, storageErr("write match event", err)
	}

	s.logger.Info("match created",
		"match_id", m.ID,
		"player1_id", player1ID,
		"player2_id", player2ID,
		"office", p1.Office,
		"week_start", m.WeekStart.Format(time.DateOnly),
	)
	return m, nil
}

// Report completes a pending match. The status change commits on its own;
// the winner's prize is then evaluated against the match's stored week start.
// If that evaluation fails, the completed match is returned together with a
// *PrizeEvaluationError.
func (s *MatchService) Report(ctx context.Context, matchID, winnerID uuid.UUID, reportedBy *uuid.UUID) (*ReportResult, error) {
	var (
		match   *domain.Match
		office  string
		offices []string
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		m, err := tx.Matches().LockForUpdate(ctx, matchID)
		if err != nil {
			return storageErr("lock match", err)
		}
		if m == nil {
			return domain.ErrMatchNotFound(matchID.String())
		}
		if err := m.Complete(winnerID, reportedBy, s.now()); err != nil {
			return err
		}
		if reportedBy != nil {
			reporter, err := tx.Players().FindByID(ctx, *reportedBy)
			if err != nil {
				return storageErr("find reporter", err)
			}
			if reporter == nil {
				return domain.ErrPlayerNotFound(reportedBy.String())
			}
		}
		if err := tx.Matches().UpdateStatus(ctx, m); err != nil {
			return storageErr("complete match", err)
		}

		office, err = s.officeOf(ctx, tx, m.Player1ID)
		if err != nil {
			return err
		}
		office2, err := s.officeOf(ctx, tx, m.Player2ID)
		if err != nil {
			return err
		}
		offices = []string{office}
		if office2 != office {
			offices = append(offices, office2)
		}
		if err := tx.Outbox().Insert(ctx, domain.NewMatchEvent(domain.EventMatchCompleted, m, office)); err != nil {
			return storageErr("write match event", err)
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match reported",
		"match_id", match.ID,
		"winner_id", winnerID,
		"office", office,
	)
	s.leaderboard.Invalidate(ctx, offices...)

	elig, err := s.prizes.EvaluateMatch(ctx, match)
	if err != nil {
		s.logger.Error("prize evaluation failed after report",
			"match_id", match.ID,
			"player_id", winnerID,
			"error", err,
		)
		return &ReportResult{Match: match}, &PrizeEvaluationError{MatchID: match.ID, PlayerID: winnerID, Err: err}
	}
	return &ReportResult{Match: match, Prize: elig}, nil
}

// Cancel moves a pending match to cancelled.
func (s *MatchService) Cancel(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	var match *domain.Match
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		m, err := tx.Matches().LockForUpdate(ctx, matchID)
		if err != nil {
			return storageErr("lock match", err)
		}
		if m == nil {
			return domain.ErrMatchNotFound(matchID.String())
		}
		if err := m.Cancel(); err != nil {
			return err
		}
		if err := tx.Matches().UpdateStatus(ctx, m); err != nil {
			return storageErr("cancel match", err)
		}
		office, err := s.officeOf(ctx, tx, m.Player1ID)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Insert(ctx, domain.NewMatchEvent(domain.EventMatchCancelled, m, office)); err != nil {
			return storageErr("write match event", err)
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("match cancelled", "match_id", match.ID)
	return match, nil
}

// Get returns a match by id.
func (s *MatchService) Get(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	m, err := s.store.Matches().FindByID(ctx, matchID)
	if err != nil {
		return nil, storageErr("find match", err)
	}
	if m == nil {
		return nil, domain.ErrMatchNotFound(matchID.String())
	}
	return m, nil
}

// ListPending returns matches awaiting a result, newest first.
func (s *MatchService) ListPending(ctx context.Context) ([]domain.MatchDetail, error) {
	matches, err := s.store.Matches().ListPending(ctx)
	if err != nil {
		return nil, storageErr("list pending matches", err)
	}
	return matches, nil
}

// ListByPlayer returns every match a player took part in, newest first.
func (s *MatchService) ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.MatchDetail, error) {
	matches, err := s.store.Matches().ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, storageErr("list player matches", err)
	}
	return matches, nil
}

// ListRecent returns the latest completed matches. limit defaults to 10 and is capped at 100.
func (s *MatchService) ListRecent(ctx context.Context, limit int) ([]domain.MatchDetail, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	matches, err := s.store.Matches().ListRecentCompleted(ctx, limit)
	if err != nil {
		return nil, storageErr("list recent matches", err)
	}
	return matches, nil
}

// WeeklyStats tallies a player's week. A nil weekStart means the current week.
func (s *MatchService) WeeklyStats(ctx context.Context, playerID uuid.UUID, weekStart *time.Time) (domain.WeeklyStats, error) {
	ws := domain.WeekStart(s.now(), s.loc)
	if weekStart != nil {
		ws = domain.DateOnly(*weekStart)
	}
	p, err := s.store.Players().FindByID(ctx, playerID)
	if err != nil {
		return domain.WeeklyStats{}, storageErr("find player", err)
	}
	if p == nil {
		return domain.WeeklyStats{}, domain.ErrPlayerNotFound(playerID.String())
	}
	stats, err := s.store.Matches().WeeklyStats(ctx, playerID, ws)
	if err != nil {
		return domain.WeeklyStats{}, storageErr("weekly stats", err)
	}
	return stats, nil
}

func (s *MatchService) officeOf(ctx context.Context, tx repository.Repos, playerID uuid.UUID) (string, error) {
	p, err := tx.Players().FindByID(ctx, playerID)
	if err != nil {
		return "", storageErr("find player", err)
	}
	if p == nil {
		return "", domain.ErrPlayerNotFound(playerID.String())
	}
	return p.Office, nil
}
