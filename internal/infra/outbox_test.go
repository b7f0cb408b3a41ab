package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sentMessage
	failAt int // 1-based call that fails; 0 never fails
	calls  int
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, sentMessage{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedOutbox(t *testing.T, store *repository.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := &domain.Match{ID: uuid.New(), Status: domain.MatchPending, CreatedAt: time.Now()}
		require.NoError(t, store.Outbox().Insert(context.Background(), domain.NewMatchEvent(domain.EventMatchCreated, m, "tempe")))
	}
}

func TestOutboxPoller_RelaysAndDeletes(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{}
	p := NewOutboxPoller(store.Outbox(), pub, nil, time.Second, 10, discardLogger())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)

	msg := pub.sent[0]
	assert.Equal(t, "ladder.match", msg.topic)
	assert.Equal(t, "tempe", msg.key)
	assert.Equal(t, string(domain.EventMatchCreated), msg.headers["event_type"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.value, &body))
	assert.Equal(t, "match", body["aggregate_type"])
	assert.Equal(t, string(domain.EventMatchCreated), body["event_type"])

	rest, err := store.Outbox().FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestOutboxPoller_StopsAtFirstFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, 3)
	pub := &fakePublisher{failAt: 2}
	p := NewOutboxPoller(store.Outbox(), pub, nil, time.Second, 10, discardLogger())

	n, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	rest, err := store.Outbox().FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	// Next poll picks up where the last one stopped.
	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, pub.sent, 3)
}

func TestOutboxPoller_BreakerPausesRelay(t *testing.T) {
	store := repository.NewMemoryStore()
	seedOutbox(t, store, 2)
	pub := &fakePublisher{failAt: 1}
	breaker := guard.NewCircuitBreaker(1, time.Hour)
	p := NewOutboxPoller(store.Outbox(), pub, breaker, time.Second, 10, discardLogger())

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, guard.CircuitOpen, breaker.State("ladder.match"))

	// Open circuit: nothing is attempted.
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, pub.calls)
}

func TestKafkaProducer_DisabledIsNoop(t *testing.T) {
	p := NewKafkaProducer("", true, discardLogger())
	assert.False(t, p.Enabled())
	require.NoError(t, p.Publish(context.Background(), "ladder.match", nil, []byte("{}"), nil))
	require.NoError(t, p.Close())
}
