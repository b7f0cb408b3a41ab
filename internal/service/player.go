package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/avatar"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
)

// PlayerService manages the player registry.
type PlayerService struct {
	store          repository.Store
	leaderboard    *LeaderboardService
	avatars        avatar.Store
	avatarMaxBytes int64
	now            Clock
	logger         *slog.Logger
}

// NewPlayerService creates a PlayerService. avatars may be nil when uploads are disabled.
func NewPlayerService(
	store repository.Store,
	leaderboard *LeaderboardService,
	avatars avatar.Store,
	avatarMaxBytes int64,
	now Clock,
	logger *slog.Logger,
) *PlayerService {
	return &PlayerService{
		store:          store,
		leaderboard:    leaderboard,
		avatars:        avatars,
		avatarMaxBytes: avatarMaxBytes,
		now:            orNow(now),
		logger:         logger,
	}
}

// Register validates and creates a player.
func (s *PlayerService) Register(ctx context.Context, params domain.RegisterPlayerParams) (*domain.Player, error) {
	if err := domain.ValidateRegistration(&params); err != nil {
		return nil, err
	}
	p := &domain.Player{
		ID:          uuid.New(),
		Name:        params.Name,
		Email:       nonEmpty(params.Email),
		SlackUserID: nonEmpty(params.SlackUserID),
		Office:      params.Office,
		IsActive:    true,
		JoinedAt:    s.now(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if err := tx.Players().Create(ctx, p); err != nil {
			return storageErr("create player", err)
		}
		if err := tx.Outbox().Insert(ctx, domain.NewPlayerRegisteredEvent(p)); err != nil {
			return storageErr("write player event", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("player registered", "player_id", p.ID, "office", p.Office)
	s.leaderboard.Invalidate(ctx, p.Office)
	return p, nil
}

// Get returns a player by id, active or not.
func (s *PlayerService) Get(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	p, err := s.store.Players().FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find player", err)
	}
	if p == nil {
		return nil, domain.ErrPlayerNotFound(id.String())
	}
	return p, nil
}

// GetBySlackID returns the active player linked to a chat user id.
func (s *PlayerService) GetBySlackID(ctx context.Context, slackUserID string) (*domain.Player, error) {
	p, err := s.store.Players().FindBySlackID(ctx, slackUserID)
	if err != nil {
		return nil, storageErr("find player by slack id", err)
	}
	if p == nil || !p.IsActive {
		return nil, domain.ErrPlayerNotFound(slackUserID)
	}
	return p, nil
}

// List returns active players, optionally limited to one office.
func (s *PlayerService) List(ctx context.Context, office string) ([]domain.Player, error) {
	players, err := s.store.Players().ListActive(ctx, domain.NormalizeOffice(office))
	if err != nil {
		return nil, storageErr("list players", err)
	}
	return players, nil
}

// Update applies profile changes. Moving a player to another office drops
// any queue entry they hold in the old one.
func (s *PlayerService) Update(ctx context.Context, id uuid.UUID, params domain.UpdatePlayerParams) (*domain.Player, error) {
	if err := domain.ValidateUpdate(&params); err != nil {
		return nil, err
	}

	var (
		player    *domain.Player
		oldOffice string
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := activePlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		oldOffice = p.Office
		params.Apply(p)
		if err := tx.Players().Update(ctx, p); err != nil {
			return storageErr("update player", err)
		}
		if p.Office != oldOffice {
			if err := s.dequeue(ctx, tx, id); err != nil {
				return err
			}
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.leaderboard.Invalidate(ctx, oldOffice, player.Office)
	return player, nil
}

// Deactivate soft-deletes a player and removes them from the queue.
func (s *PlayerService) Deactivate(ctx context.Context, id uuid.UUID) error {
	var office string
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := activePlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		office = p.Office
		if err := tx.Players().Deactivate(ctx, id); err != nil {
			return storageErr("deactivate player", err)
		}
		if err := s.dequeue(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Outbox().Insert(ctx, domain.NewPlayerDeactivatedEvent(id, office)); err != nil {
			return storageErr("write player event", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("player deactivated", "player_id", id, "office", office)
	s.leaderboard.Invalidate(ctx, office)
	return nil
}

func (s *PlayerService) dequeue(ctx context.Context, tx repository.Repos, id uuid.UUID) error {
	entry, err := tx.Queue().FindByPlayer(ctx, id)
	if err != nil {
		return storageErr("find queue entry", err)
	}
	if entry == nil {
		return nil
	}
	if err := tx.Queue().LockOffice(ctx, entry.Office); err != nil {
		return storageErr("lock office queue", err)
	}
	if _, err := tx.Queue().Remove(ctx, id); err != nil {
		return storageErr("remove queue entry", err)
	}
	if err := tx.Outbox().Insert(ctx, domain.NewQueueEvent(domain.EventQueueLeft, *entry)); err != nil {
		return storageErr("write queue event", err)
	}
	return nil
}

// UploadAvatar stores a new avatar, points the player at it and removes the
// previous one.
func (s *PlayerService) UploadAvatar(ctx context.Context, id uuid.UUID, upload avatar.Upload) (string, error) {
	if s.avatars == nil {
		return "", domain.ErrValidation("avatar uploads are disabled")
	}
	ext, err := upload.Validate(s.avatarMaxBytes)
	if err != nil {
		return "", err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}

	ref, err := s.avatars.Put(ctx, avatar.NewKey(id, ext, s.now()), avatar.ContentTypeFor(ext), upload.Body, upload.Size)
	if err != nil {
		return "", domain.ErrInternal("store avatar", err)
	}

	previous, err := s.setAvatar(ctx, id, &ref)
	if err != nil {
		s.removeAvatar(ctx, ref)
		return "", err
	}
	if previous != nil {
		s.removeAvatar(ctx, *previous)
	}
	return ref, nil
}

// DeleteAvatar clears the player's avatar and removes the stored file.
func (s *PlayerService) DeleteAvatar(ctx context.Context, id uuid.UUID) error {
	previous, err := s.setAvatar(ctx, id, nil)
	if err != nil {
		return err
	}
	if previous != nil {
		s.removeAvatar(ctx, *previous)
	}
	return nil
}

func (s *PlayerService) setAvatar(ctx context.Context, id uuid.UUID, ref *string) (*string, error) {
	var (
		previous *string
		office   string
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := tx.Players().FindByID(ctx, id)
		if err != nil {
			return storageErr("find player", err)
		}
		if p == nil {
			return domain.ErrPlayerNotFound(id.String())
		}
		previous, office = p.AvatarURL, p.Office
		if err := tx.Players().SetAvatar(ctx, id, ref); err != nil {
			return storageErr("set avatar", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.leaderboard.Invalidate(ctx, office)
	return previous, nil
}

func (s *PlayerService) removeAvatar(ctx context.Context, ref string) {
	if s.avatars == nil {
		return
	}
	if err := s.avatars.Delete(ctx, ref); err != nil {
		s.logger.Warn("remove avatar file failed", "ref", ref, "error", err)
	}
}

var samplePlayers = []domain.RegisterPlayerParams{
	{Name: "Alice Johnson", Email: strPtr("alice@company.com"), SlackUserID: strPtr("U01234567"), Office: "chicago"},
	{Name: "Bob Smith", Email: strPtr("bob@company.com"), SlackUserID: strPtr("U01234568"), Office: "chicago"},
	{Name: "Carol Davis", Email: strPtr("carol@company.com"), SlackUserID: strPtr("U01234569"), Office: "new york"},
	{Name: "David Wilson", Email: strPtr("david@company.com"), SlackUserID: strPtr("U01234570"), Office: "new york"},
	{Name: "Eve Brown", Email: strPtr("eve@company.com"), SlackUserID: strPtr("U01234571"), Office: "tempe"},
	{Name: "Frank Miller", Email: strPtr("frank@company.com"), SlackUserID: strPtr("U01234572"), Office: "tempe"},
}

// SeedSamplePlayers registers a demo roster when no players exist yet.
// Returns the number of players created.
func (s *PlayerService) SeedSamplePlayers(ctx context.Context) (int, error) {
	n, err := s.store.Players().Count(ctx)
	if err != nil {
		return 0, storageErr("count players", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, params := range samplePlayers {
		if _, err := s.Register(ctx, params); err != nil {
			return i, err
		}
	}
	return len(samplePlayers), nil
}

func strPtr(s string) *string { return &s }

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
