package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/repository"
)

// Clock returns the current instant.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// storageErr passes AppErrors through and wraps anything else as INTERNAL_ERROR.
func storageErr(msg string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.ErrInternal(msg, err)
}

// activePlayer loads a player that may take part in matches.
func activePlayer(ctx context.Context, repos repository.Repos, id uuid.UUID) (*domain.Player, error) {
	p, err := repos.Players().FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find player", err)
	}
	if p == nil || !p.IsActive {
		return nil, domain.ErrPlayerNotFound(id.String())
	}
	return p, nil
}
