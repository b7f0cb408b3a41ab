package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/officeladder/ladder/internal/domain"
)

type queueRepo struct {
	db   DBTX
	inTx bool
}

// LockOffice takes a transaction-scoped advisory lock keyed by office name,
// so two joins in the same office cannot pair the same entries.
func (r *queueRepo) LockOffice(ctx context.Context, office string) error {
	if !r.inTx {
		return nil
	}
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('queue:' || $1))`, office)
	if err != nil {
		return fmt.Errorf("lock office queue: %w", err)
	}
	return nil
}

func (r *queueRepo) FindByPlayer(ctx context.Context, playerID uuid.UUID) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := r.db.QueryRow(ctx, `
		SELECT player_id, office, joined_at
		FROM matchmaking_queue WHERE player_id = $1`, playerID).Scan(&e.PlayerID, &e.Office, &e.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	return &e, nil
}

func (r *queueRepo) ListByOffice(ctx context.Context, office string) ([]domain.QueueEntryDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT mq.player_id, mq.office, mq.joined_at, p.name, p.slack_user_id
		FROM matchmaking_queue mq
		JOIN players p ON p.id = mq.player_id
		WHERE mq.office = $1
		ORDER BY mq.joined_at ASC, mq.seq ASC`, office)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntryDetail
	for rows.Next() {
		var e domain.QueueEntryDetail
		if err := rows.Scan(&e.PlayerID, &e.Office, &e.JoinedAt, &e.Name, &e.SlackUserID); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *queueRepo) Insert(ctx context.Context, entry domain.QueueEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO matchmaking_queue (player_id, office, joined_at)
		VALUES ($1, $2, $3)`,
		entry.PlayerID, entry.Office, entry.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyQueued()
		}
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *queueRepo) Remove(ctx context.Context, playerID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM matchmaking_queue WHERE player_id = $1`, playerID)
	if err != nil {
		return false, fmt.Errorf("delete queue entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queueRepo) WaitingOffices(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT office FROM matchmaking_queue
		GROUP BY office
		HAVING COUNT(*) >= 2
		ORDER BY office`)
	if err != nil {
		return nil, fmt.Errorf("query waiting offices: %w", err)
	}
	defer rows.Close()

	var offices []string
	for rows.Next() {
		var office string
		if err := rows.Scan(&office); err != nil {
			return nil, fmt.Errorf("scan office: %w", err)
		}
		offices = append(offices, office)
	}
	return offices, rows.Err()
}
