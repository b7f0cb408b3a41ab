package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgRepos binds the pgx repositories to one DBTX.
type pgRepos struct {
	db   DBTX
	inTx bool
}

func (r *pgRepos) Players() PlayerRepository { return &playerRepo{db: r.db} }
func (r *pgRepos) Queue() QueueRepository    { return &queueRepo{db: r.db, inTx: r.inTx} }
func (r *pgRepos) Matches() MatchRepository  { return &matchRepo{db: r.db} }
func (r *pgRepos) Prizes() PrizeRepository   { return &prizeRepo{db: r.db} }
func (r *pgRepos) Outbox() OutboxRepository  { return &outboxRepo{db: r.db} }

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	pgRepos
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgRepos: pgRepos{db: pool}, pool: pool}
}

// WithTx runs fn inside a READ COMMITTED transaction. Row locks
// (FOR UPDATE, advisory locks) taken by the repositories serialize writers.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Repos) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgRepos{db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks the database connection with a short timeout.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
