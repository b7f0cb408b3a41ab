package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/officeladder/ladder/internal/domain"
)

type prizeRepo struct {
	db DBTX
}

func (r *prizeRepo) Find(ctx context.Context, playerID uuid.UUID, prizeType domain.PrizeType, weekStart time.Time) (*domain.Prize, error) {
	var p domain.Prize
	var pt string
	err := r.db.QueryRow(ctx, `
		SELECT id, player_id, prize_type, week_start, earned_at, claimed
		FROM prizes
		WHERE player_id = $1 AND prize_type = $2 AND week_start = $3`,
		playerID, string(prizeType), weekStart).Scan(&p.ID, &p.PlayerID, &pt, &p.WeekStart, &p.EarnedAt, &p.Claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan prize: %w", err)
	}
	p.PrizeType = domain.PrizeType(pt)
	return &p, nil
}

// Insert relies on the unique (player_id, prize_type, week_start) index; a
// concurrent award that got there first turns this into a no-op.
func (r *prizeRepo) Insert(ctx context.Context, p *domain.Prize) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO prizes (id, player_id, prize_type, week_start, earned_at, claimed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, prize_type, week_start) DO NOTHING`,
		p.ID, p.PlayerID, string(p.PrizeType), p.WeekStart, p.EarnedAt, p.Claimed)
	if err != nil {
		return false, fmt.Errorf("insert prize: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *prizeRepo) ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.Prize, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, player_id, prize_type, week_start, earned_at, claimed
		FROM prizes WHERE player_id = $1
		ORDER BY week_start DESC, earned_at DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query prizes: %w", err)
	}
	defer rows.Close()

	var prizes []domain.Prize
	for rows.Next() {
		var p domain.Prize
		var pt string
		if err := rows.Scan(&p.ID, &p.PlayerID, &pt, &p.WeekStart, &p.EarnedAt, &p.Claimed); err != nil {
			return nil, fmt.Errorf("scan prize: %w", err)
		}
		p.PrizeType = domain.PrizeType(pt)
		prizes = append(prizes, p)
	}
	return prizes, rows.Err()
}
