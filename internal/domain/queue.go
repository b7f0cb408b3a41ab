package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry represents a matchmaking_queue row.
type QueueEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Office   string    `json:"office"`
	JoinedAt time.Time `json:"joined_at"`
}

// QueueEntryDetail is a queue entry joined with the player's display fields.
type QueueEntryDetail struct {
	QueueEntry
	Name        string  `json:"name"`
	SlackUserID *string `json:"slack_user_id,omitempty"`
}
