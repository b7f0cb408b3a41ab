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

const matchColumns = `m.id, m.player1_id, m.player2_id, m.winner_id, m.reported_by, m.status, m.week_start, m.created_at, m.completed_at`

// matchDetailSelect joins participant names and avatars onto a match row.
const matchDetailSelect = `
	SELECT ` + matchColumns + `,
	       p1.name, p2.name, w.name, p1.avatar_url, p2.avatar_url
	FROM matches m
	JOIN players p1 ON p1.id = m.player1_id
	JOIN players p2 ON p2.id = m.player2_id
	LEFT JOIN players w ON w.id = m.winner_id`

type matchRepo struct {
	db DBTX
}

func (r *matchRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	row := r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = $1`, id)
	return scanMatch(row)
}

func (r *matchRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	row := r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = $1 FOR UPDATE`, id)
	return scanMatch(row)
}

func (r *matchRepo) Insert(ctx context.Context, m *domain.Match) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, status, week_start, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Player1ID, m.Player2ID, string(m.Status), m.WeekStart, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// UpdateStatus only touches pending rows; a terminal row is never rewritten.
func (r *matchRepo) UpdateStatus(ctx context.Context, m *domain.Match) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matches SET status = $2, winner_id = $3, reported_by = $4, completed_at = $5
		WHERE id = $1 AND status = 'pending'`,
		m.ID, string(m.Status), m.WinnerID, m.ReportedBy, m.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict(fmt.Sprintf("match %s is no longer pending", m.ID))
	}
	return nil
}

func (r *matchRepo) ListPending(ctx context.Context) ([]domain.MatchDetail, error) {
	return r.queryDetails(ctx, matchDetailSelect+`
		WHERE m.status = 'pending'
		ORDER BY m.created_at DESC`)
}

func (r *matchRepo) ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.MatchDetail, error) {
	return r.queryDetails(ctx, matchDetailSelect+`
		WHERE m.player1_id = $1 OR m.player2_id = $1
		ORDER BY m.created_at DESC`, playerID)
}

func (r *matchRepo) ListRecentCompleted(ctx context.Context, limit int) ([]domain.MatchDetail, error) {
	return r.queryDetails(ctx, matchDetailSelect+`
		WHERE m.status = 'completed'
		ORDER BY m.completed_at DESC
		LIMIT $1`, limit)
}

func (r *matchRepo) ListCompleted(ctx context.Context) ([]domain.Match, error) {
	rows, err := r.db.Query(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.status = 'completed'`)
	if err != nil {
		return nil, fmt.Errorf("query completed matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// WeeklyStats mirrors the prize rule: losses only count matches with a winner.
func (r *matchRepo) WeeklyStats(ctx context.Context, playerID uuid.UUID, weekStart time.Time) (domain.WeeklyStats, error) {
	stats := domain.WeeklyStats{PlayerID: playerID, WeekStart: weekStart}
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE winner_id = $1),
			COUNT(*) FILTER (WHERE winner_id IS NOT NULL AND winner_id <> $1)
		FROM matches
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND week_start = $2
		  AND status = 'completed'`,
		playerID, weekStart).Scan(&stats.Wins, &stats.Losses)
	if err != nil {
		return stats, fmt.Errorf("weekly stats: %w", err)
	}
	return stats, nil
}

func (r *matchRepo) WinnersInWeek(ctx context.Context, weekStart time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT winner_id FROM matches
		WHERE week_start = $1 AND status = 'completed' AND winner_id IS NOT NULL`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("query week winners: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *matchRepo) MarkPrizeEvaluated(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `UPDATE matches SET prize_evaluated = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark prize evaluated: %w", err)
	}
	return nil
}

func (r *matchRepo) ListPrizeUnevaluated(ctx context.Context, limit int) ([]domain.Match, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+matchColumns+` FROM matches m
		WHERE m.status = 'completed' AND NOT m.prize_evaluated
		ORDER BY m.completed_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unevaluated matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (r *matchRepo) queryDetails(ctx context.Context, sql string, args ...interface{}) ([]domain.MatchDetail, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var details []domain.MatchDetail
	for rows.Next() {
		var d domain.MatchDetail
		var status string
		err := rows.Scan(
			&d.ID, &d.Player1ID, &d.Player2ID, &d.WinnerID, &d.ReportedBy, &status,
			&d.WeekStart, &d.CreatedAt, &d.CompletedAt,
			&d.Player1Name, &d.Player2Name, &d.WinnerName, &d.Player1Avatar, &d.Player2Avatar,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match detail: %w", err)
		}
		d.Status = domain.MatchStatus(status)
		details = append(details, d)
	}
	return details, rows.Err()
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	var status string
	err := row.Scan(&m.ID, &m.Player1ID, &m.Player2ID, &m.WinnerID, &m.ReportedBy, &status,
		&m.WeekStart, &m.CreatedAt, &m.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}
	m.Status = domain.MatchStatus(status)
	return &m, nil
}
