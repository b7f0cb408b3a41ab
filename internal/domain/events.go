package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(agg AggregateType, aggID, partition string, evt EventType, payload interface{}) OutboxDraft {
	data, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evt,
		PartitionKey:  partition,
		Headers:       json.RawMessage(`{}`),
		Payload:       data,
		OccurredAt:    time.Now(),
	}
}

// NewPlayerRegisteredEvent creates a player lifecycle event.
func NewPlayerRegisteredEvent(p *Player) OutboxDraft {
	return newDraft(AggregatePlayer, p.ID.String(), p.Office, EventPlayerRegistered, p)
}

// NewPlayerDeactivatedEvent records a soft delete.
func NewPlayerDeactivatedEvent(playerID uuid.UUID, office string) OutboxDraft {
	return newDraft(AggregatePlayer, playerID.String(), office, EventPlayerDeactivated, map[string]string{
		"player_id": playerID.String(),
		"office":    office,
	})
}

// NewQueueEvent records a player joining or leaving an office queue.
func NewQueueEvent(evt EventType, entry QueueEntry) OutboxDraft {
	return newDraft(AggregateQueue, entry.Office, entry.Office, evt, entry)
}

// NewMatchEvent records a match state change. Partitioned by office so
// consumers see one office's matches in order.
func NewMatchEvent(evt EventType, m *Match, office string) OutboxDraft {
	return newDraft(AggregateMatch, m.ID.String(), office, evt, m)
}

// NewPrizeAwardedEvent records a weekly prize award.
func NewPrizeAwardedEvent(p *Prize, wins, losses int) OutboxDraft {
	return newDraft(AggregatePrize, p.ID.String(), p.PlayerID.String(), EventPrizeAwarded, map[string]interface{}{
		"prize":  p,
		"wins":   wins,
		"losses": losses,
	})
}
