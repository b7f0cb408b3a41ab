package domain

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a players row.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       *string   `json:"email,omitempty"`
	SlackUserID *string   `json:"slack_user_id,omitempty"`
	Office      string    `json:"office"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	JoinedAt    time.Time `json:"joined_at"`
}

// RegisterPlayerParams holds the fields accepted on registration.
type RegisterPlayerParams struct {
	Name        string  `json:"name"`
	Email       *string `json:"email,omitempty"`
	SlackUserID *string `json:"slack_user_id,omitempty"`
	Office      string  `json:"office"`
}

// UpdatePlayerParams holds optional profile changes. Nil fields are left untouched.
type UpdatePlayerParams struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	SlackUserID *string `json:"slack_user_id,omitempty"`
	Office      *string `json:"office,omitempty"`
}

// Apply copies the non-nil fields of u onto p.
func (u UpdatePlayerParams) Apply(p *Player) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = emptyToNil(*u.Email)
	}
	if u.SlackUserID != nil {
		p.SlackUserID = emptyToNil(*u.SlackUserID)
	}
	if u.Office != nil {
		p.Office = *u.Office
	}
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
