// Package chatcmd turns chat slash-command text into ladder operations and
// renders the replies.
package chatcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/service"
)

// LeaderboardSize is the number of rows shown by the leaderboard command.
const LeaderboardSize = 10

const (
	helpText = "Available commands:\n" +
		"• `/mtg join` - Join matchmaking\n" +
		"• `/mtg leave` - Leave queue\n" +
		"• `/mtg stats` - View your stats\n" +
		"• `/mtg leaderboard` - See rankings"

	msgRegisterFirst  = "Please register first by visiting the tournament website!"
	msgPlayerNotFound = "Player not found!"
	msgJoinFailed     = "Error joining queue. Please try again."
	msgLeaveFailed    = "Error leaving queue."
	msgStatsFailed    = "Error fetching stats."
	msgBoardFailed    = "Error fetching leaderboard."
	msgLeft           = "👋 You've left the matchmaking queue."
	msgSlowDown       = "⏱️ Too many commands. Please wait a moment and try again."
)

// Command is one slash-command invocation.
type Command struct {
	UserID string
	Text   string
}

// Reply is the chat response body.
type Reply struct {
	ResponseType string `json:"response_type,omitempty"`
	Text         string `json:"text"`
}

// Dispatcher routes commands to the ladder services.
type Dispatcher struct {
	players     *service.PlayerService
	queue       *service.QueueService
	matches     *service.MatchService
	leaderboard *service.LeaderboardService
	limiter     *guard.RateLimiter
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil limiter disables rate limiting.
func NewDispatcher(
	players *service.PlayerService,
	queue *service.QueueService,
	matches *service.MatchService,
	leaderboard *service.LeaderboardService,
	limiter *guard.RateLimiter,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		players:     players,
		queue:       queue,
		matches:     matches,
		leaderboard: leaderboard,
		limiter:     limiter,
		logger:      logger,
	}
}

// Handle runs one command. Failures are rendered as reply text; Handle
// never returns an error to the chat platform.
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) Reply {
	verb := strings.ToLower(strings.TrimSpace(cmd.Text))
	switch verb {
	case "join", "leave", "stats", "leaderboard":
	default:
		return Reply{Text: helpText}
	}

	if d.limiter != nil {
		if res := d.limiter.Check(ctx, cmd.UserID); !res.Allowed {
			d.logger.Warn("chat command rate limited", "slack_user_id", cmd.UserID, "command", verb)
			return Reply{ResponseType: "ephemeral", Text: msgSlowDown}
		}
	}

	switch verb {
	case "join":
		return d.join(ctx, cmd.UserID)
	case "leave":
		return d.leave(ctx, cmd.UserID)
	case "stats":
		return d.stats(ctx, cmd.UserID)
	default:
		return d.standings(ctx, cmd.UserID)
	}
}

func (d *Dispatcher) lookup(ctx context.Context, userID string) (*domain.Player, error) {
	if userID == "" {
		return nil, domain.ErrPlayerNotFound("")
	}
	return d.players.GetBySlackID(ctx, userID)
}

func (d *Dispatcher) join(ctx context.Context, userID string) Reply {
	player, err := d.lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrKindNotFound) {
			d.logger.Error("chat join lookup failed", "slack_user_id", userID, "error", err)
		}
		return Reply{Text: msgRegisterFirst}
	}

	result, err := d.queue.Join(ctx, player.ID, "")
	var pairErr *service.PairingError
	switch {
	case errors.As(err, &pairErr):
		// The entry is queued; pairing is retried on the next join.
	case errors.Is(err, domain.ErrCodeAlreadyQueued):
		return Reply{Text: fmt.Sprintf("⏳ You're already in the %s matchmaking queue. Waiting for an opponent...", player.Office)}
	case err != nil:
		d.logger.Error("chat join failed", "player_id", player.ID, "error", err)
		return Reply{Text: msgJoinFailed}
	}

	if result.Match != nil {
		opponentID, _ := result.Match.Opponent(player.ID)
		name := "your opponent"
		if opp, err := d.players.Get(ctx, opponentID); err == nil {
			name = opp.Name
		}
		return Reply{ResponseType: "in_channel", Text: fmt.Sprintf("🎯 Match found! You're paired with %s. Good luck! 🍀", name)}
	}
	return Reply{Text: fmt.Sprintf("⏳ You've joined the %s matchmaking queue. Waiting for an opponent...", result.Entry.Office)}
}

func (d *Dispatcher) leave(ctx context.Context, userID string) Reply {
	player, err := d.lookup(ctx, userID)
	if err != nil {
		return Reply{Text: msgPlayerNotFound}
	}
	if _, err := d.queue.Leave(ctx, player.ID); err != nil {
		d.logger.Error("chat leave failed", "player_id", player.ID, "error", err)
		return Reply{Text: msgLeaveFailed}
	}
	return Reply{Text: msgLeft}
}

func (d *Dispatcher) stats(ctx context.Context, userID string) Reply {
	player, err := d.lookup(ctx, userID)
	if err != nil {
		return Reply{Text: msgPlayerNotFound}
	}
	stats, err := d.matches.WeeklyStats(ctx, player.ID, nil)
	if err != nil {
		d.logger.Error("chat stats failed", "player_id", player.ID, "error", err)
		return Reply{Text: msgStatsFailed}
	}
	return Reply{Text: fmt.Sprintf("📊 Your stats this week:\n🏆 Wins: %d\n💀 Losses: %d\n🎯 Games played: %d",
		stats.Wins, stats.Losses, stats.GamesPlayed())}
}

func (d *Dispatcher) standings(ctx context.Context, userID string) Reply {
	player, err := d.lookup(ctx, userID)
	if err != nil {
		return Reply{Text: msgPlayerNotFound}
	}
	entries, err := d.leaderboard.Compute(ctx, player.Office)
	if err != nil {
		d.logger.Error("chat leaderboard failed", "office", player.Office, "error", err)
		return Reply{Text: msgBoardFailed}
	}
	return Reply{Text: FormatLeaderboard(player.Office, entries)}
}

// FormatLeaderboard renders the top rows of an office leaderboard.
func FormatLeaderboard(office string, entries []domain.LeaderboardEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s OFFICE LEADERBOARD 🏆\n\n", strings.ToUpper(office))
	for i, e := range entries {
		if i == LeaderboardSize {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %dW/%dL (%.1f%%)\n", i+1, e.Name, e.Wins, e.Losses, e.WinRate)
	}
	return b.String()
}
