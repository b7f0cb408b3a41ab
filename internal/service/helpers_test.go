package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/projection"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/stretchr/testify/require"
)

// Wednesday; its week starts Sunday 2024-03-03.
var baseTime = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

var week0303 = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

var errStorageDown = errors.New("storage unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	store       repository.Store
	cache       *projection.InMemoryStore
	clock       *fakeClock
	players     *PlayerService
	queue       *QueueService
	matches     *MatchService
	prizes      *PrizeService
	leaderboard *LeaderboardService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, repository.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, store repository.Store) *testEnv {
	t.Helper()
	logger := discardLogger()
	clock := &fakeClock{t: baseTime}
	cache := projection.NewInMemoryStore()

	leaderboard := NewLeaderboardService(store, cache, time.Minute, logger)
	prizes := NewPrizeService(store, time.UTC, clock.Now, logger)
	matches := NewMatchService(store, prizes, leaderboard, time.UTC, clock.Now, logger)
	return &testEnv{
		store:       store,
		cache:       cache,
		clock:       clock,
		players:     NewPlayerService(store, leaderboard, nil, 0, clock.Now, logger),
		queue:       NewQueueService(store, matches, clock.Now, logger),
		matches:     matches,
		prizes:      prizes,
		leaderboard: leaderboard,
	}
}

func (e *testEnv) register(t *testing.T, name, office string) *domain.Player {
	t.Helper()
	p, err := e.players.Register(context.Background(), domain.RegisterPlayerParams{Name: name, Office: office})
	require.NoError(t, err)
	return p
}

// play creates and reports one match won by winner.
func (e *testEnv) play(t *testing.T, winner, loser *domain.Player) *ReportResult {
	t.Helper()
	ctx := context.Background()
	m, err := e.matches.Create(ctx, winner.ID, loser.ID)
	require.NoError(t, err)
	res, err := e.matches.Report(ctx, m.ID, winner.ID, nil)
	require.NoError(t, err)
	return res
}

func (e *testEnv) outboxTypes(t *testing.T) []domain.EventType {
	t.Helper()
	events, err := e.store.Outbox().FetchUnpublished(context.Background(), 1000)
	require.NoError(t, err)
	types := make([]domain.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	return types
}

func countOf[T comparable](items []T, want T) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

// flakyStore fails weekly stats lookups inside transactions while failStats
// is set, and office queue locks while failQueue is set.
type flakyStore struct {
	*repository.MemoryStore
	mu        sync.Mutex
	failStats bool
	failQueue bool
}

func (s *flakyStore) setFailQueue(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQueue = v
}

func (s *flakyStore) queueFailing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failQueue
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStats = v
}

func (s *flakyStore) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failStats
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx repository.Repos) error {
		return fn(&flakyRepos{Repos: tx, store: s})
	})
}

type flakyRepos struct {
	repository.Repos
	store *flakyStore
}

func (r *flakyRepos) Matches() repository.MatchRepository {
	return &flakyMatches{MatchRepository: r.Repos.Matches(), store: r.store}
}

type flakyMatches struct {
	repository.MatchRepository
	store *flakyStore
}

func (m *flakyMatches) WeeklyStats(ctx context.Context, playerID uuid.UUID, weekStart time.Time) (domain.WeeklyStats, error) {
	if m.store.failing() {
		return domain.WeeklyStats{}, errStorageDown
	}
	return m.MatchRepository.WeeklyStats(ctx, playerID, weekStart)
}

func (r *flakyRepos) Queue() repository.QueueRepository {
	return &flakyQueue{QueueRepository: r.Repos.Queue(), store: r.store}
}

type flakyQueue struct {
	repository.QueueRepository
	store *flakyStore
}

func (q *flakyQueue) LockOffice(ctx context.Context, office string) error {
	if q.store.queueFailing() {
		return errStorageDown
	}
	return q.QueueRepository.LockOffice(ctx, office)
}

// hookStore runs afterList once, right after the next ListCompleted call
// returns its rows.
type hookStore struct {
	*repository.MemoryStore
	mu        sync.Mutex
	afterList func()
}

func (s *hookStore) onNextList(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterList = fn
}

func (s *hookStore) takeHook() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.afterList
	s.afterList = nil
	return fn
}

func (s *hookStore) Matches() repository.MatchRepository {
	return &hookMatches{MatchRepository: s.MemoryStore.Matches(), store: s}
}

type hookMatches struct {
	repository.MatchRepository
	store *hookStore
}

func (m *hookMatches) ListCompleted(ctx context.Context) ([]domain.Match, error) {
	matches, err := m.MatchRepository.ListCompleted(ctx)
	if fn := m.store.takeHook(); fn != nil {
		fn()
	}
	return matches, err
}

// cachedBoard reads the cached leaderboard at the current generation.
func (e *testEnv) cachedBoard(t *testing.T, office string) ([]domain.LeaderboardEntry, error) {
	t.Helper()
	ctx := context.Background()
	gen, err := projection.LeaderboardGeneration(ctx, e.cache, office)
	require.NoError(t, err)
	return projection.GetLeaderboard(ctx, e.cache, office, gen)
}
