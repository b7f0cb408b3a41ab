package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/guard"
	"github.com/officeladder/ladder/internal/repository"
)

// Publisher delivers one relayed event.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// OutboxPoller relays event_outbox rows to the publisher and deletes them
// once delivered. Events leave in insertion order; the first failure ends
// the batch so later events never overtake an undelivered one.
type OutboxPoller struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	breaker   *guard.CircuitBreaker
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller. breaker may be nil.
func NewOutboxPoller(
	outbox repository.OutboxRepository,
	publisher Publisher,
	breaker *guard.CircuitBreaker,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *OutboxPoller {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		outbox:    outbox,
		publisher: publisher,
		breaker:   breaker,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *OutboxPoller) Start(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("outbox poller stopped")
				return
			case <-ticker.C:
				if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
					p.logger.Error("outbox poll error", "error", err)
				}
			}
		}
	}()
}

// relayedEvent is the message body written to Kafka.
type relayedEvent struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Poll relays one batch and returns how many events were delivered.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	var (
		delivered []int64
		pubErr    error
	)
	for _, e := range events {
		topic := e.Topic()
		if p.breaker != nil {
			if res := p.breaker.Check(ctx, topic); !res.Allowed {
				p.logger.Debug("outbox relay paused", "topic", topic, "reason", res.Reason)
				break
			}
		}
		if err := p.publish(ctx, topic, e); err != nil {
			if p.breaker != nil {
				p.breaker.RecordFailure(topic)
			}
			pubErr = fmt.Errorf("publish %s: %w", e.EventID, err)
			break
		}
		if p.breaker != nil {
			p.breaker.RecordSuccess(topic)
		}
		delivered = append(delivered, e.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, delivered); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if len(delivered) > 0 {
		p.logger.Debug("outbox poll complete", "published", len(delivered))
	}
	return len(delivered), pubErr
}

func (p *OutboxPoller) publish(ctx context.Context, topic string, e domain.OutboxDraft) error {
	msg, err := json.Marshal(relayedEvent{
		EventID:       e.EventID.String(),
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		EventType:     string(e.EventType),
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
	if err != nil {
		return err
	}

	key := e.PartitionKey
	if key == "" {
		key = e.AggregateID
	}
	return p.publisher.Publish(ctx, topic, []byte(key), msg, map[string]string{
		"event_type": string(e.EventType),
		"event_id":   e.EventID.String(),
	})
}
