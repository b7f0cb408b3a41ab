package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/officeladder/ladder/internal/avatar"
	"github.com/officeladder/ladder/internal/chatcmd"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/handler"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/officeladder/ladder/internal/service"
)

// AvatarURLPrefix is where locally stored avatars are served.
const AvatarURLPrefix = "/uploads/avatars"

// Deps holds everything New needs to assemble the application.
type Deps struct {
	Store    repository.Store
	Cache    projection.Store // nil disables the leaderboard cache
	CacheTTL time.Duration

	Avatars        avatar.Store // nil disables uploads
	AvatarMaxBytes int64
	AvatarDir      string // served under AvatarURLPrefix when set

	Location      *time.Location
	ChatRateLimit int
	CORSOrigins   string
	Now           service.Clock
	Logger        *slog.Logger
}

// App is the wired service graph plus its HTTP router.
type App struct {
	Players     *service.PlayerService
	Queue       *service.QueueService
	Matches     *service.MatchService
	Prizes      *service.PrizeService
	Leaderboard *service.LeaderboardService
	Chat        *chatcmd.Dispatcher
	ChatLimiter *guard.RateLimiter
	Router      chi.Router
}

// New builds services, handlers and routes.
func New(deps Deps) *App {
	logger := deps.Logger
	store := deps.Store

	// Services
	leaderboard := service.NewLeaderboardService(store, deps.Cache, deps.CacheTTL, logger)
	prizes := service.NewPrizeService(store, deps.Location, deps.Now, logger)
	matches := service.NewMatchService(store, prizes, leaderboard, deps.Location, deps.Now, logger)
	queue := service.NewQueueService(store, matches, deps.Now, logger)
	players := service.NewPlayerService(store, leaderboard, deps.Avatars, deps.AvatarMaxBytes, deps.Now, logger)

	limiter := guard.NewRateLimiter(deps.ChatRateLimit, time.Minute)
	chat := chatcmd.NewDispatcher(players, queue, matches, leaderboard, limiter, logger)

	a := &App{
		Players:     players,
		Queue:       queue,
		Matches:     matches,
		Prizes:      prizes,
		Leaderboard: leaderboard,
		Chat:        chat,
		ChatLimiter: limiter,
	}
	a.Router = a.routes(deps)
	return a
}

func (a *App) routes(deps Deps) chi.Router {
	logger := deps.Logger

	// Handlers
	playerHandler := handler.NewPlayerHandler(a.Players, a.Prizes, deps.AvatarMaxBytes)
	matchHandler := handler.NewMatchHandler(a.Matches, logger)
	queueHandler := handler.NewQueueHandler(a.Queue, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(a.Leaderboard, a.Prizes)
	slackHandler := handler.NewSlackHandler(a.Chat)

	origins := deps.CORSOrigins
	if origins == "" {
		origins = "*"
	}

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origins))

	// Static avatar files keep their own content type.
	if deps.AvatarDir != "" {
		files := http.StripPrefix(AvatarURLPrefix+"/", http.FileServer(http.Dir(deps.AvatarDir)))
		r.Get(AvatarURLPrefix+"/*", files.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Store))

		r.Route("/players", func(r chi.Router) {
			r.Get("/", playerHandler.List)
			r.Post("/", playerHandler.Register)
			r.Get("/office/{office}", playerHandler.ListByOffice)
			r.Get("/{id}", playerHandler.Get)
			r.Put("/{id}", playerHandler.Update)
			r.Delete("/{id}", playerHandler.Deactivate)
			r.Post("/{id}/avatar", playerHandler.UploadAvatar)
			r.Delete("/{id}/avatar", playerHandler.DeleteAvatar)
			r.Get("/{id}/prizes", playerHandler.ListPrizes)
		})

		r.Get("/leaderboard", leaderboardHandler.Get)

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", matchHandler.Create)
			r.Get("/pending", matchHandler.ListPending)
			r.Get("/recent", matchHandler.ListRecent)
			r.Get("/player/{playerID}", matchHandler.ListByPlayer)
			r.Get("/stats/{playerID}", matchHandler.WeeklyStats)
			r.Get("/{id}", matchHandler.Get)
			r.Post("/{id}/report", matchHandler.Report)
			r.Delete("/{id}", matchHandler.Cancel)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Post("/join", queueHandler.Join)
			r.Post("/leave", queueHandler.Leave)
			r.Get("/{office}", queueHandler.List)
		})

		r.Post("/prizes/reconcile", leaderboardHandler.Reconcile)

		r.Post("/slack/commands", slackHandler.Command)
	})

	return r
}
