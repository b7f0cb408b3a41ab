package chatcmd

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/officeladder/ladder/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	players    *service.PlayerService
	matches    *service.MatchService
	queue      *service.QueueService
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, limiter *guard.RateLimiter) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()

	leaderboard := service.NewLeaderboardService(store, projection.NewInMemoryStore(), time.Minute, logger)
	prizes := service.NewPrizeService(store, time.UTC, nil, logger)
	matches := service.NewMatchService(store, prizes, leaderboard, time.UTC, nil, logger)
	players := service.NewPlayerService(store, leaderboard, nil, 0, nil, logger)
	queue := service.NewQueueService(store, matches, nil, logger)
	return &fixture{
		players:    players,
		matches:    matches,
		queue:      queue,
		dispatcher: NewDispatcher(players, queue, matches, leaderboard, limiter, logger),
	}
}

func (f *fixture) register(t *testing.T, name, slackID, office string) *domain.Player {
	t.Helper()
	p, err := f.players.Register(context.Background(), domain.RegisterPlayerParams{
		Name:        name,
		SlackUserID: &slackID,
		Office:      office,
	})
	require.NoError(t, err)
	return p
}

func TestHandle_HelpForUnknownText(t *testing.T) {
	f := newFixture(t, nil)
	for _, text := range []string{"", "help", "dance"} {
		reply := f.dispatcher.Handle(context.Background(), Command{UserID: "U1", Text: text})
		assert.Equal(t, helpText, reply.Text, "text %q", text)
	}
}

func TestHandle_UnregisteredUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, msgRegisterFirst, f.dispatcher.Handle(ctx, Command{UserID: "UNKNOWN1", Text: "join"}).Text)
	assert.Equal(t, msgPlayerNotFound, f.dispatcher.Handle(ctx, Command{UserID: "UNKNOWN1", Text: "leave"}).Text)
	assert.Equal(t, msgPlayerNotFound, f.dispatcher.Handle(ctx, Command{UserID: "UNKNOWN1", Text: "stats"}).Text)
	assert.Equal(t, msgPlayerNotFound, f.dispatcher.Handle(ctx, Command{UserID: "UNKNOWN1", Text: "leaderboard"}).Text)
}

func TestHandle_JoinWaitsThenPairs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.register(t, "Eve Brown", "U01234571", "tempe")
	f.register(t, "Frank Miller", "U01234572", "tempe")

	reply := f.dispatcher.Handle(ctx, Command{UserID: "U01234571", Text: "join"})
	assert.Equal(t, "⏳ You've joined the tempe matchmaking queue. Waiting for an opponent...", reply.Text)

	reply = f.dispatcher.Handle(ctx, Command{UserID: "U01234571", Text: " JOIN "})
	assert.Contains(t, reply.Text, "already in the tempe")

	reply = f.dispatcher.Handle(ctx, Command{UserID: "U01234572", Text: "join"})
	assert.Equal(t, "🎯 Match found! You're paired with Eve Brown. Good luck! 🍀", reply.Text)

	pending, err := f.matches.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	entries, err := f.queue.List(ctx, "tempe")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandle_Leave(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.register(t, "Alice", "U01234567", "chicago")

	f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "join"})
	assert.Equal(t, msgLeft, f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "leave"}).Text)

	entries, err := f.queue.List(ctx, "chicago")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Leaving twice is still a friendly reply.
	assert.Equal(t, msgLeft, f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "leave"}).Text)
}

func TestHandle_StatsAndLeaderboard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.register(t, "Alice", "U01234567", "chicago")
	bob := f.register(t, "Bob", "U01234568", "chicago")

	for _, winner := range []*domain.Player{alice, alice, bob} {
		loser := bob
		if winner == bob {
			loser = alice
		}
		m, err := f.matches.Create(ctx, winner.ID, loser.ID)
		require.NoError(t, err)
		_, err = f.matches.Report(ctx, m.ID, winner.ID, nil)
		require.NoError(t, err)
	}

	reply := f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "stats"})
	assert.Equal(t, "📊 Your stats this week:\n🏆 Wins: 2\n💀 Losses: 1\n🎯 Games played: 3", reply.Text)

	reply = f.dispatcher.Handle(ctx, Command{UserID: "U01234568", Text: "leaderboard"})
	assert.Equal(t, "🏆 CHICAGO OFFICE LEADERBOARD 🏆\n\n"+
		"1. Alice - 2W/1L (66.7%)\n"+
		"2. Bob - 1W/2L (33.3%)\n", reply.Text)
}

func TestHandle_RateLimited(t *testing.T) {
	f := newFixture(t, guard.NewRateLimiter(2, time.Minute))
	ctx := context.Background()
	f.register(t, "Alice", "U01234567", "chicago")

	f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "stats"})
	f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "stats"})
	reply := f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "stats"})
	assert.Equal(t, msgSlowDown, reply.Text)
	assert.Equal(t, "ephemeral", reply.ResponseType)

	// Help is never limited.
	assert.Equal(t, helpText, f.dispatcher.Handle(ctx, Command{UserID: "U01234567", Text: "help"}).Text)
}

func TestFormatLeaderboard_TopTen(t *testing.T) {
	entries := make([]domain.LeaderboardEntry, 12)
	for i := range entries {
		entries[i] = domain.LeaderboardEntry{Name: "P", Wins: 0}
	}
	out := FormatLeaderboard("new-york", entries)
	assert.Contains(t, out, "NEW-YORK OFFICE LEADERBOARD")
	assert.Contains(t, out, "10. P - 0W/0L (0.0%)")
	assert.NotContains(t, out, "11.")
}
