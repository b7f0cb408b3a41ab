package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/officeladder/ladder/internal/domain"
)

const playerColumns = `id, name, email, slack_user_id, office, avatar_url, is_active, joined_at`

type playerRepo struct {
	db DBTX
}

func (r *playerRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *playerRepo) FindBySlackID(ctx context.Context, slackUserID string) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE slack_user_id = $1`, slackUserID)
	return scanPlayer(row)
}

func (r *playerRepo) ListActive(ctx context.Context, office string) ([]domain.Player, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active = true AND ($1 = '' OR office = $1)
		ORDER BY name ASC`, office)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (r *playerRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

func (r *playerRepo) Create(ctx context.Context, p *domain.Player) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO players (id, name, email, slack_user_id, office, avatar_url, is_active, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Email, p.SlackUserID, p.Office, p.AvatarURL, p.IsActive, p.JoinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("slack user id already registered")
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *playerRepo) Update(ctx context.Context, p *domain.Player) error {
	_, err := r.db.Exec(ctx, `
		UPDATE players SET name = $2, email = $3, slack_user_id = $4, office = $5
		WHERE id = $1`,
		p.ID, p.Name, p.Email, p.SlackUserID, p.Office,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict("slack user id already registered")
		}
		return fmt.Errorf("update player: %w", err)
	}
	return nil
}

func (r *playerRepo) SetAvatar(ctx context.Context, id uuid.UUID, avatarURL *string) error {
	_, err := r.db.Exec(ctx, `UPDATE players SET avatar_url = $2 WHERE id = $1`, id, avatarURL)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (r *playerRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE players SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate player: %w", err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.SlackUserID, &p.Office, &p.AvatarURL, &p.IsActive, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
