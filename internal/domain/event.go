package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventPlayerRegistered  EventType = "ladder.player.registered"
	EventPlayerDeactivated EventType = "ladder.player.deactivated"
	EventQueueJoined       EventType = "ladder.queue.joined"
	EventQueueLeft         EventType = "ladder.queue.left"
	EventMatchCreated      EventType = "ladder.match.created"
	EventMatchCompleted    EventType = "ladder.match.completed"
	EventMatchCancelled    EventType = "ladder.match.cancelled"
	EventPrizeAwarded      EventType = "ladder.prize.awarded"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregatePlayer AggregateType = "player"
	AggregateQueue  AggregateType = "queue"
	AggregateMatch  AggregateType = "match"
	AggregatePrize  AggregateType = "prize"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	SeqID         int64           `json:"-"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Topic is the Kafka topic an event is relayed to.
func (d OutboxDraft) Topic() string {
	return "ladder." + string(d.AggregateType)
}
