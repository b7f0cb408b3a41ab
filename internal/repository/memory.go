package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
)

// MemoryStore is an in-process Store for local development and tests.
// A single mutex serializes every call; WithTx holds it for the whole
// callback and restores a snapshot if the callback fails.
type MemoryStore struct {
	memRepos
	mu    sync.Mutex
	state *memState
}

type prizeKey struct {
	playerID  uuid.UUID
	prizeType domain.PrizeType
	week      time.Time
}

type queued struct {
	entry domain.QueueEntry
	seq   int64
}

type memState struct {
	players map[uuid.UUID]domain.Player
	queue   map[uuid.UUID]queued
	matches map[uuid.UUID]domain.Match
	// evaluated holds completed matches whose prize check has run.
	evaluated map[uuid.UUID]bool
	prizes    map[prizeKey]domain.Prize
	outbox  []domain.OutboxDraft
	seq     int64
}

func newMemState() *memState {
	return &memState{
		players: make(map[uuid.UUID]domain.Player),
		queue:   make(map[uuid.UUID]queued),
		matches:   make(map[uuid.UUID]domain.Match),
		evaluated: make(map[uuid.UUID]bool),
		prizes:    make(map[prizeKey]domain.Prize),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.queue {
		c.queue[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.evaluated {
		c.evaluated[k] = v
	}
	for k, v := range s.prizes {
		c.prizes[k] = v
	}
	c.outbox = append([]domain.OutboxDraft(nil), s.outbox...)
	c.seq = s.seq
	return c
}

func (s *memState) nextSeq() int64 {
	s.seq++
	return s.seq
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.memRepos = memRepos{store: s}
	return s
}

// WithTx runs fn with exclusive access to the store.
func (s *MemoryStore) WithTx(_ context.Context, fn func(tx Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memRepos{store: s, inTx: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

type memRepos struct {
	store *MemoryStore
	inTx  bool
}

// acquire locks the store unless the caller already holds it via WithTx.
func (r *memRepos) acquire() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memRepos) Players() PlayerRepository { return &memPlayers{r} }
func (r *memRepos) Queue() QueueRepository    { return &memQueue{r} }
func (r *memRepos) Matches() MatchRepository  { return &memMatches{r} }
func (r *memRepos) Prizes() PrizeRepository   { return &memPrizes{r} }
func (r *memRepos) Outbox() OutboxRepository  { return &memOutbox{r} }

// --- players ---

type memPlayers struct{ *memRepos }

func (r *memPlayers) FindByID(_ context.Context, id uuid.UUID) (*domain.Player, error) {
	defer r.acquire()()
	p, ok := r.store.state.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPlayers) FindBySlackID(_ context.Context, slackUserID string) (*domain.Player, error) {
	defer r.acquire()()
	for _, p := range r.store.state.players {
		if p.SlackUserID != nil && *p.SlackUserID == slackUserID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memPlayers) ListActive(_ context.Context, office string) ([]domain.Player, error) {
	defer r.acquire()()
	var players []domain.Player
	for _, p := range r.store.state.players {
		if !p.IsActive || (office != "" && p.Office != office) {
			continue
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

func (r *memPlayers) Count(_ context.Context) (int, error) {
	defer r.acquire()()
	return len(r.store.state.players), nil
}

func (r *memPlayers) Create(_ context.Context, p *domain.Player) error {
	defer r.acquire()()
	if _, ok := r.store.state.players[p.ID]; ok {
		return fmt.Errorf("insert player: duplicate id %s", p.ID)
	}
	if r.slackIDTaken(p.ID, p.SlackUserID) {
		return domain.ErrConflict("slack user id already registered")
	}
	r.store.state.players[p.ID] = *p
	return nil
}

func (r *memPlayers) Update(_ context.Context, p *domain.Player) error {
	defer r.acquire()()
	cur, ok := r.store.state.players[p.ID]
	if !ok {
		return nil
	}
	if r.slackIDTaken(p.ID, p.SlackUserID) {
		return domain.ErrConflict("slack user id already registered")
	}
	cur.Name, cur.Email, cur.SlackUserID, cur.Office = p.Name, p.Email, p.SlackUserID, p.Office
	r.store.state.players[p.ID] = cur
	return nil
}

func (r *memPlayers) SetAvatar(_ context.Context, id uuid.UUID, avatarURL *string) error {
	defer r.acquire()()
	if p, ok := r.store.state.players[id]; ok {
		p.AvatarURL = avatarURL
		r.store.state.players[id] = p
	}
	return nil
}

func (r *memPlayers) Deactivate(_ context.Context, id uuid.UUID) error {
	defer r.acquire()()
	if p, ok := r.store.state.players[id]; ok {
		p.IsActive = false
		r.store.state.players[id] = p
	}
	return nil
}

func (r *memPlayers) slackIDTaken(self uuid.UUID, slackID *string) bool {
	if slackID == nil {
		return false
	}
	for id, p := range r.store.state.players {
		if id != self && p.SlackUserID != nil && *p.SlackUserID == *slackID {
			return true
		}
	}
	return false
}

// --- queue ---

type memQueue struct{ *memRepos }

// LockOffice is a no-op: WithTx already holds the store-wide lock.
func (r *memQueue) LockOffice(_ context.Context, _ string) error { return nil }

func (r *memQueue) FindByPlayer(_ context.Context, playerID uuid.UUID) (*domain.QueueEntry, error) {
	defer r.acquire()()
	q, ok := r.store.state.queue[playerID]
	if !ok {
		return nil, nil
	}
	return &q.entry, nil
}

func (r *memQueue) ListByOffice(_ context.Context, office string) ([]domain.QueueEntryDetail, error) {
	defer r.acquire()()
	var rows []queued
	for _, q := range r.store.state.queue {
		if q.entry.Office == office {
			rows = append(rows, q)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].entry.JoinedAt.Equal(rows[j].entry.JoinedAt) {
			return rows[i].entry.JoinedAt.Before(rows[j].entry.JoinedAt)
		}
		return rows[i].seq < rows[j].seq
	})

	entries := make([]domain.QueueEntryDetail, 0, len(rows))
	for _, q := range rows {
		d := domain.QueueEntryDetail{QueueEntry: q.entry}
		if p, ok := r.store.state.players[q.entry.PlayerID]; ok {
			d.Name = p.Name
			d.SlackUserID = p.SlackUserID
		}
		entries = append(entries, d)
	}
	return entries, nil
}

func (r *memQueue) Insert(_ context.Context, entry domain.QueueEntry) error {
	defer r.acquire()()
	if _, ok := r.store.state.queue[entry.PlayerID]; ok {
		return domain.ErrAlreadyQueued()
	}
	r.store.state.queue[entry.PlayerID] = queued{entry: entry, seq: r.store.state.nextSeq()}
	return nil
}

func (r *memQueue) Remove(_ context.Context, playerID uuid.UUID) (bool, error) {
	defer r.acquire()()
	if _, ok := r.store.state.queue[playerID]; !ok {
		return false, nil
	}
	delete(r.store.state.queue, playerID)
	return true, nil
}

func (r *memQueue) WaitingOffices(_ context.Context) ([]string, error) {
	defer r.acquire()()
	counts := make(map[string]int)
	for _, q := range r.store.state.queue {
		counts[q.entry.Office]++
	}
	var offices []string
	for office, n := range counts {
		if n >= 2 {
			offices = append(offices, office)
		}
	}
	sort.Strings(offices)
	return offices, nil
}

// --- matches ---

type memMatches struct{ *memRepos }

func (r *memMatches) FindByID(_ context.Context, id uuid.UUID) (*domain.Match, error) {
	defer r.acquire()()
	m, ok := r.store.state.matches[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *memMatches) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	return r.FindByID(ctx, id)
}

func (r *memMatches) Insert(_ context.Context, m *domain.Match) error {
	defer r.acquire()()
	if _, ok := r.store.state.matches[m.ID]; ok {
		return fmt.Errorf("insert match: duplicate id %s", m.ID)
	}
	r.store.state.matches[m.ID] = *m
	return nil
}

func (r *memMatches) UpdateStatus(_ context.Context, m *domain.Match) error {
	defer r.acquire()()
	cur, ok := r.store.state.matches[m.ID]
	if !ok || cur.Status != domain.MatchPending {
		return domain.ErrConflict(fmt.Sprintf("match %s is no longer pending", m.ID))
	}
	cur.Status, cur.WinnerID, cur.ReportedBy, cur.CompletedAt = m.Status, m.WinnerID, m.ReportedBy, m.CompletedAt
	r.store.state.matches[m.ID] = cur
	return nil
}

func (r *memMatches) ListPending(_ context.Context) ([]domain.MatchDetail, error) {
	defer r.acquire()()
	details := r.details(func(m domain.Match) bool { return m.Status == domain.MatchPending })
	sort.Slice(details, func(i, j int) bool { return details[i].CreatedAt.After(details[j].CreatedAt) })
	return details, nil
}

func (r *memMatches) ListByPlayer(_ context.Context, playerID uuid.UUID) ([]domain.MatchDetail, error) {
	defer r.acquire()()
	details := r.details(func(m domain.Match) bool { return m.HasParticipant(playerID) })
	sort.Slice(details, func(i, j int) bool { return details[i].CreatedAt.After(details[j].CreatedAt) })
	return details, nil
}

func (r *memMatches) ListRecentCompleted(_ context.Context, limit int) ([]domain.MatchDetail, error) {
	defer r.acquire()()
	details := r.details(func(m domain.Match) bool { return m.Status == domain.MatchCompleted })
	sort.Slice(details, func(i, j int) bool { return details[i].CompletedAt.After(*details[j].CompletedAt) })
	if limit > 0 && len(details) > limit {
		details = details[:limit]
	}
	return details, nil
}

func (r *memMatches) ListCompleted(_ context.Context) ([]domain.Match, error) {
	defer r.acquire()()
	var matches []domain.Match
	for _, m := range r.store.state.matches {
		if m.Status == domain.MatchCompleted {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func (r *memMatches) WeeklyStats(_ context.Context, playerID uuid.UUID, weekStart time.Time) (domain.WeeklyStats, error) {
	defer r.acquire()()
	stats := domain.WeeklyStats{PlayerID: playerID, WeekStart: weekStart}
	for _, m := range r.store.state.matches {
		if m.Status != domain.MatchCompleted || !m.WeekStart.Equal(weekStart) || !m.HasParticipant(playerID) || m.WinnerID == nil {
			continue
		}
		if *m.WinnerID == playerID {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	return stats, nil
}

func (r *memMatches) WinnersInWeek(_ context.Context, weekStart time.Time) ([]uuid.UUID, error) {
	defer r.acquire()()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, m := range r.store.state.matches {
		if m.Status != domain.MatchCompleted || m.WinnerID == nil || !m.WeekStart.Equal(weekStart) {
			continue
		}
		if !seen[*m.WinnerID] {
			seen[*m.WinnerID] = true
			ids = append(ids, *m.WinnerID)
		}
	}
	return ids, nil
}

func (r *memMatches) MarkPrizeEvaluated(_ context.Context, id uuid.UUID) error {
	defer r.acquire()()
	if _, ok := r.store.state.matches[id]; ok {
		r.store.state.evaluated[id] = true
	}
	return nil
}

func (r *memMatches) ListPrizeUnevaluated(_ context.Context, limit int) ([]domain.Match, error) {
	defer r.acquire()()
	var matches []domain.Match
	for id, m := range r.store.state.matches {
		if m.Status == domain.MatchCompleted && !r.store.state.evaluated[id] {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CompletedAt.Before(*matches[j].CompletedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memMatches) details(keep func(domain.Match) bool) []domain.MatchDetail {
	var out []domain.MatchDetail
	players := r.store.state.players
	for _, m := range r.store.state.matches {
		if !keep(m) {
			continue
		}
		d := domain.MatchDetail{
			Match:         m,
			Player1Name:   players[m.Player1ID].Name,
			Player2Name:   players[m.Player2ID].Name,
			Player1Avatar: players[m.Player1ID].AvatarURL,
			Player2Avatar: players[m.Player2ID].AvatarURL,
		}
		if m.WinnerID != nil {
			name := players[*m.WinnerID].Name
			d.WinnerName = &name
		}
		out = append(out, d)
	}
	return out
}

// --- prizes ---

type memPrizes struct{ *memRepos }

func (r *memPrizes) Find(_ context.Context, playerID uuid.UUID, prizeType domain.PrizeType, weekStart time.Time) (*domain.Prize, error) {
	defer r.acquire()()
	p, ok := r.store.state.prizes[prizeKey{playerID, prizeType, weekStart.UTC()}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPrizes) Insert(_ context.Context, p *domain.Prize) (bool, error) {
	defer r.acquire()()
	key := prizeKey{p.PlayerID, p.PrizeType, p.WeekStart.UTC()}
	if _, ok := r.store.state.prizes[key]; ok {
		return false, nil
	}
	r.store.state.prizes[key] = *p
	return true, nil
}

func (r *memPrizes) ListByPlayer(_ context.Context, playerID uuid.UUID) ([]domain.Prize, error) {
	defer r.acquire()()
	var prizes []domain.Prize
	for _, p := range r.store.state.prizes {
		if p.PlayerID == playerID {
			prizes = append(prizes, p)
		}
	}
	sort.Slice(prizes, func(i, j int) bool {
		if !prizes[i].WeekStart.Equal(prizes[j].WeekStart) {
			return prizes[i].WeekStart.After(prizes[j].WeekStart)
		}
		return prizes[i].EarnedAt.After(prizes[j].EarnedAt)
	})
	return prizes, nil
}

// --- outbox ---

type memOutbox struct{ *memRepos }

func (r *memOutbox) Insert(_ context.Context, draft domain.OutboxDraft) error {
	defer r.acquire()()
	draft.SeqID = r.store.state.nextSeq()
	r.store.state.outbox = append(r.store.state.outbox, draft)
	return nil
}

func (r *memOutbox) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxDraft, error) {
	defer r.acquire()()
	n := len(r.store.state.outbox)
	if limit > 0 && n > limit {
		n = limit
	}
	return append([]domain.OutboxDraft(nil), r.store.state.outbox[:n]...), nil
}

func (r *memOutbox) MarkPublished(_ context.Context, ids []int64) error {
	defer r.acquire()()
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.store.state.outbox[:0]
	for _, d := range r.store.state.outbox {
		if !drop[d.SeqID] {
			kept = append(kept, d)
		}
	}
	r.store.state.outbox = kept
	return nil
}
