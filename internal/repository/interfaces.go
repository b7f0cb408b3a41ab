package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/officeladder/ladder/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos interface {
	Players() PlayerRepository
	Queue() QueueRepository
	Matches() MatchRepository
	Prizes() PrizeRepository
	Outbox() OutboxRepository
}

// Store is the persistence entry point. Repos used outside WithTx run each
// call on its own; WithTx runs fn atomically and serialized against other
// writers touching the same rows.
type Store interface {
	Repos

	// WithTx runs fn in a transaction. If fn returns an error nothing it
	// wrote is kept.
	WithTx(ctx context.Context, fn func(tx Repos) error) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// PlayerRepository provides access to players.
type PlayerRepository interface {
	// FindByID returns a player by ID, active or not. Returns nil if absent.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Player, error)

	// FindBySlackID returns a player by chat user id. Returns nil if absent.
	FindBySlackID(ctx context.Context, slackUserID string) (*domain.Player, error)

	// ListActive returns active players, optionally restricted to one office.
	ListActive(ctx context.Context, office string) ([]domain.Player, error)

	// Count returns the number of player rows.
	Count(ctx context.Context) (int, error)

	// Create inserts a new player.
	Create(ctx context.Context, player *domain.Player) error

	// Update overwrites the mutable profile fields of a player.
	Update(ctx context.Context, player *domain.Player) error

	// SetAvatar replaces the avatar reference. Nil clears it.
	SetAvatar(ctx context.Context, id uuid.UUID, avatarURL *string) error

	// Deactivate clears the active flag.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// QueueRepository provides access to matchmaking_queue.
type QueueRepository interface {
	// LockOffice serializes queue mutations for one office until the
	// surrounding transaction ends. No-op outside a transaction.
	LockOffice(ctx context.Context, office string) error

	// FindByPlayer returns the player's queue entry, or nil.
	FindByPlayer(ctx context.Context, playerID uuid.UUID) (*domain.QueueEntry, error)

	// ListByOffice returns the office queue ordered by joined_at ascending.
	ListByOffice(ctx context.Context, office string) ([]domain.QueueEntryDetail, error)

	// Insert adds an entry. Returns domain.ErrAlreadyQueued on a duplicate player.
	Insert(ctx context.Context, entry domain.QueueEntry) error

	// Remove deletes the player's entry and reports whether one existed.
	Remove(ctx context.Context, playerID uuid.UUID) (bool, error)

	// WaitingOffices returns offices with at least two queued players.
	WaitingOffices(ctx context.Context) ([]string, error)
}

// MatchRepository provides access to matches.
type MatchRepository interface {
	// FindByID returns a match, or nil.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)

	// LockForUpdate returns the match with a row lock held until the
	// surrounding transaction ends, or nil.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Match, error)

	// Insert creates a new match.
	Insert(ctx context.Context, m *domain.Match) error

	// UpdateStatus persists status, winner, reporter and completion time.
	UpdateStatus(ctx context.Context, m *domain.Match) error

	// ListPending returns pending matches, newest first, with names.
	ListPending(ctx context.Context) ([]domain.MatchDetail, error)

	// ListByPlayer returns all matches involving the player, newest first.
	ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.MatchDetail, error)

	// ListRecentCompleted returns the latest completed matches.
	ListRecentCompleted(ctx context.Context, limit int) ([]domain.MatchDetail, error)

	// ListCompleted returns every completed match. Used by the leaderboard.
	ListCompleted(ctx context.Context) ([]domain.Match, error)

	// WeeklyStats tallies a player's completed matches stored under weekStart.
	WeeklyStats(ctx context.Context, playerID uuid.UUID, weekStart time.Time) (domain.WeeklyStats, error)

	// WinnersInWeek returns every player who won a completed match stored
	// under weekStart.
	WinnersInWeek(ctx context.Context, weekStart time.Time) ([]uuid.UUID, error)

	// MarkPrizeEvaluated records that the winner's prize check for a
	// completed match has run.
	MarkPrizeEvaluated(ctx context.Context, id uuid.UUID) error

	// ListPrizeUnevaluated returns completed matches whose prize check has
	// not run yet, oldest completion first.
	ListPrizeUnevaluated(ctx context.Context, limit int) ([]domain.Match, error)
}

// PrizeRepository provides access to prizes.
type PrizeRepository interface {
	// Find returns the prize for (player, type, week), or nil.
	Find(ctx context.Context, playerID uuid.UUID, prizeType domain.PrizeType, weekStart time.Time) (*domain.Prize, error)

	// Insert creates a prize. Returns false without error if the
	// (player, type, week) tuple already exists.
	Insert(ctx context.Context, p *domain.Prize) (bool, error)

	// ListByPlayer returns a player's prizes, newest week first.
	ListByPlayer(ctx context.Context, playerID uuid.UUID) ([]domain.Prize, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the change).
	Insert(ctx context.Context, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox poller, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished deletes relayed events.
	MarkPublished(ctx context.Context, ids []int64) error
}
