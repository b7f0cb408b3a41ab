package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
)

// PrizeService awards weekly prizes: three wins or three losses inside one
// week-start window, at most once per player per category per week.
type PrizeService struct {
	store  repository.Store
	loc    *time.Location
	now    Clock
	logger *slog.Logger
}

// NewPrizeService creates a PrizeService. loc anchors week starts; nil means time.Local.
func NewPrizeService(store repository.Store, loc *time.Location, now Clock, logger *slog.Logger) *PrizeService {
	return &PrizeService{store: store, loc: loc, now: orNow(now), logger: logger}
}

// CurrentWeek returns the week start containing the current instant.
func (s *PrizeService) CurrentWeek() time.Time {
	return domain.WeekStart(s.now(), s.loc)
}

// Evaluate checks the player's tally for the week containing the current instant.
func (s *PrizeService) Evaluate(ctx context.Context, playerID uuid.UUID) (*domain.Eligibility, error) {
	return s.EvaluateWeek(ctx, playerID, s.CurrentWeek())
}

// EvaluateWeek checks the player's tally for the given week and awards the
// unlocked category if the player does not hold it yet.
func (s *PrizeService) EvaluateWeek(ctx context.Context, playerID uuid.UUID, weekStart time.Time) (*domain.Eligibility, error) {
	var result *domain.Eligibility
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := tx.Players().FindByID(ctx, playerID)
		if err != nil {
			return storageErr("find player", err)
		}
		if p == nil {
			return domain.ErrPlayerNotFound(playerID.String())
		}
		result, err = s.evaluate(ctx, tx, playerID, domain.DateOnly(weekStart))
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EvaluateMatch runs the winner's prize check for a completed match against
// the match's stored week start, and records in the same transaction that
// the check ran. A match whose check failed stays pending for ReconcilePending.
func (s *PrizeService) EvaluateMatch(ctx context.Context, m *domain.Match) (*domain.Eligibility, error) {
	if m.Status != domain.MatchCompleted || m.WinnerID == nil {
		return nil, domain.ErrValidation(fmt.Sprintf("match %s has no winner", m.ID))
	}
	winnerID := *m.WinnerID

	var result *domain.Eligibility
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := tx.Players().FindByID(ctx, winnerID)
		if err != nil {
			return storageErr("find player", err)
		}
		if p == nil {
			return domain.ErrPlayerNotFound(winnerID.String())
		}
		result, err = s.evaluate(ctx, tx, winnerID, domain.DateOnly(m.WeekStart))
		if err != nil {
			return err
		}
		if err := tx.Matches().MarkPrizeEvaluated(ctx, m.ID); err != nil {
			return storageErr("mark prize evaluated", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PrizeService) evaluate(ctx context.Context, tx repository.Repos, playerID uuid.UUID, weekStart time.Time) (*domain.Eligibility, error) {
	stats, err := tx.Matches().WeeklyStats(ctx, playerID, weekStart)
	if err != nil {
		return nil, storageErr("weekly stats", err)
	}
	result := &domain.Eligibility{Wins: stats.Wins, Losses: stats.Losses}

	category, ok := domain.PrizeCategory(stats.Wins, stats.Losses)
	if !ok {
		return result, nil
	}

	existing, err := tx.Prizes().Find(ctx, playerID, category, weekStart)
	if err != nil {
		return nil, storageErr("find prize", err)
	}
	if existing != nil {
		return result, nil
	}

	prize := &domain.Prize{
		ID:        uuid.New(),
		PlayerID:  playerID,
		PrizeType: category,
		WeekStart: weekStart,
		EarnedAt:  s.now(),
	}
	inserted, err := tx.Prizes().Insert(ctx, prize)
	if err != nil {
		return nil, storageErr("insert prize", err)
	}
	// Lost the race to a concurrent evaluation: already awarded.
	if !inserted {
		return result, nil
	}
	if err := tx.Outbox().Insert(ctx, domain.NewPrizeAwardedEvent(prize, stats.Wins, stats.Losses)); err != nil {
		return nil, storageErr("write prize event", err)
	}

	s.logger.Info("prize awarded",
		"player_id", playerID,
		"prize_type", category,
		"week_start", weekStart.Format(time.DateOnly),
		"wins", stats.Wins,
		"losses", stats.Losses,
	)
	result.Eligible = true
	result.Category = category
	return result, nil
}

// ReconcileResult summarizes a reconcile pass.
type ReconcileResult struct {
	WeekStart time.Time `json:"week_start"`
	Evaluated int       `json:"evaluated"`
	Awarded   int       `json:"awarded"`
	Failed    int       `json:"failed"`
}

// Reconcile re-evaluates every winner of a completed match in the week.
// Awards missed by a failed evaluation after a report are granted here;
// already awarded prizes are left alone. Per-player failures are collected
// and do not stop the pass.
func (s *PrizeService) Reconcile(ctx context.Context, weekStart time.Time) (*ReconcileResult, error) {
	weekStart = domain.DateOnly(weekStart)
	winners, err := s.store.Matches().WinnersInWeek(ctx, weekStart)
	if err != nil {
		return nil, storageErr("list week winners", err)
	}

	res := &ReconcileResult{WeekStart: weekStart}
	var errs []error
	for _, id := range winners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res.Evaluated++
		elig, err := s.EvaluateWeek(ctx, id, weekStart)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("player %s: %w", id, err))
			continue
		}
		if elig.Eligible {
			res.Awarded++
		}
	}

	if res.Awarded > 0 || res.Failed > 0 {
		s.logger.Info("prize reconcile finished",
			"week_start", weekStart.Format(time.DateOnly),
			"evaluated", res.Evaluated,
			"awarded", res.Awarded,
			"failed", res.Failed,
		)
	}
	return res, errors.Join(errs...)
}

// pendingBatch bounds one ReconcilePending pass.
const pendingBatch = 100

// ReconcilePending re-runs the prize check for completed matches whose check
// never succeeded, whatever week they belong to. Per-match failures are
// collected and do not stop the pass.
func (s *PrizeService) ReconcilePending(ctx context.Context) (*ReconcileResult, error) {
	matches, err := s.store.Matches().ListPrizeUnevaluated(ctx, pendingBatch)
	if err != nil {
		return nil, storageErr("list unevaluated matches", err)
	}

	res := &ReconcileResult{}
	var errs []error
	for i := range matches {
		m := &matches[i]
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res.Evaluated++
		elig, err := s.EvaluateMatch(ctx, m)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("match %s: %w", m.ID, err))
			continue
		}
		if elig.Eligible {
			res.Awarded++
		}
	}

	if res.Evaluated > 0 {
		s.logger.Info("pending prize checks reconciled",
			"evaluated", res.Evaluated,
			"awarded", res.Awarded,
			"failed", res.Failed,
		)
	}
	return res, errors.Join(errs...)
}

// ListByPlayer returns every prize a player has earned, newest week first.
func (s *PrizeService) ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.Prize, error) {
	p, err := s.store.Players().FindByID(ctx, playerID)
	if err != nil {
		return nil, storageErr("find player", err)
	}
	if p == nil {
		return nil, domain.ErrPlayerNotFound(playerID.String())
	}
	prizes, err := s.store.Prizes().ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, storageErr("list prizes", err)
	}
	return prizes, nil
}
