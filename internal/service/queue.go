package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
)

// QueueService runs the per-office FIFO matchmaking queue.
type QueueService struct {
	store   repository.Store
	matches *MatchService
	now     Clock
	logger  *slog.Logger
}

// NewQueueService creates a QueueService.
func NewQueueService(store repository.Store, matches *MatchService, now Clock, logger *slog.Logger) *QueueService {
	return &QueueService{store: store, matches: matches, now: orNow(now), logger: logger}
}

// JoinResult is the caller's queue entry and, if pairing fired, the new match.
type JoinResult struct {
	Entry domain.QueueEntry `json:"entry"`
	Match *domain.Match     `json:"match,omitempty"`
}

// PairingError reports that a join succeeded but pairing the office queue
// failed. Every entry, the new one included, stays queued.
type PairingError struct {
	Office string
	Err    error
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("pairing %s queue: %v", e.Office, e.Err)
}

func (e *PairingError) Unwrap() error { return e.Err }

// Join enqueues an active player in their office and runs a pairing check.
// An empty office means the player's own office. When pairing fails the
// result still carries the committed entry and the error is a *PairingError.
func (s *QueueService) Join(ctx context.Context, playerID uuid.UUID, office string) (*JoinResult, error) {
	office = domain.NormalizeOffice(office)

	var entry domain.QueueEntry
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := activePlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if office == "" {
			office = p.Office
		}
		if office != p.Office {
			return domain.ErrOfficeMismatch(p.Office, office)
		}

		existing, err := tx.Queue().FindByPlayer(ctx, playerID)
		if err != nil {
			return storageErr("find queue entry", err)
		}
		if existing != nil {
			return domain.ErrAlreadyQueued()
		}

		entry = domain.QueueEntry{PlayerID: playerID, Office: office, JoinedAt: s.now()}
		if err := tx.Queue().Insert(ctx, entry); err != nil {
			return storageErr("insert queue entry", err)
		}
		if err := tx.Outbox().Insert(ctx, domain.NewQueueEvent(domain.EventQueueJoined, entry)); err != nil {
			return storageErr("write queue event", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("player joined queue", "player_id", playerID, "office", office)

	result := &JoinResult{Entry: entry}
	match, err := s.PairingCheck(ctx, office)
	if err != nil {
		s.logger.Error("queue pairing failed", "office", office, "error", err)
		return result, &PairingError{Office: office, Err: err}
	}
	result.Match = match
	return result, nil
}

// PairingCheck matches the two oldest entries of an office queue, if there
// are two. Match creation and both dequeues commit together; on failure the
// queue is untouched. Returns nil when fewer than two players are waiting.
func (s *QueueService) PairingCheck(ctx context.Context, office string) (*domain.Match, error) {
	var match *domain.Match
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if err := tx.Queue().LockOffice(ctx, office); err != nil {
			return storageErr("lock office queue", err)
		}
		entries, err := tx.Queue().ListByOffice(ctx, office)
		if err != nil {
			return storageErr("list queue", err)
		}
		if len(entries) < 2 {
			return nil
		}

		first, second := entries[0].PlayerID, entries[1].PlayerID
		m, err := s.matches.create(ctx, tx, first, second)
		if err != nil {
			return err
		}
		for _, id := range []uuid.UUID{first, second} {
			if _, err := tx.Queue().Remove(ctx, id); err != nil {
				return storageErr("dequeue player", err)
			}
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if match != nil {
		s.logger.Info("queue paired players",
			"office", office,
			"match_id", match.ID,
			"player1_id", match.Player1ID,
			"player2_id", match.Player2ID,
		)
	}
	return match, nil
}

// PairWaiting runs pairing checks in every office that has players waiting,
// until each office is down to at most one entry. It returns the number of
// matches created. A failing office does not stop the others.
func (s *QueueService) PairWaiting(ctx context.Context) (int, error) {
	offices, err := s.store.Queue().WaitingOffices(ctx)
	if err != nil {
		return 0, storageErr("list waiting offices", err)
	}

	paired := 0
	var errs []error
	for _, office := range offices {
		for {
			if err := ctx.Err(); err != nil {
				return paired, err
			}
			m, err := s.PairingCheck(ctx, office)
			if err != nil {
				errs = append(errs, &PairingError{Office: office, Err: err})
				break
			}
			if m == nil {
				break
			}
			paired++
		}
	}
	return paired, errors.Join(errs...)
}

// Leave removes the player's queue entry. Leaving when not queued is a no-op.
func (s *QueueService) Leave(ctx context.Context, playerID uuid.UUID) (bool, error) {
	var removed bool
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		entry, err := tx.Queue().FindByPlayer(ctx, playerID)
		if err != nil {
			return storageErr("find queue entry", err)
		}
		if entry == nil {
			return nil
		}
		if err := tx.Queue().LockOffice(ctx, entry.Office); err != nil {
			return storageErr("lock office queue", err)
		}
		removed, err = tx.Queue().Remove(ctx, playerID)
		if err != nil {
			return storageErr("remove queue entry", err)
		}
		if !removed {
			return nil
		}
		if err := tx.Outbox().Insert(ctx, domain.NewQueueEvent(domain.EventQueueLeft, *entry)); err != nil {
			return storageErr("write queue event", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("player left queue", "player_id", playerID)
	}
	return removed, nil
}

// List returns an office queue, oldest first, with player names.
func (s *QueueService) List(ctx context.Context, office string) ([]domain.QueueEntryDetail, error) {
	entries, err := s.store.Queue().ListByOffice(ctx, domain.NormalizeOffice(office))
	if err != nil {
		return nil, storageErr("list queue", err)
	}
	return entries, nil
}
