package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	slackIDRegex = regexp.MustCompile(`^[UW][A-Z0-9]{2,}$`)
)

// MaxNameLength caps player display names.
const MaxNameLength = 100

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateSlackUserID checks the shape of a Slack member id (U01234567).
func ValidateSlackUserID(id string) error {
	if !slackIDRegex.MatchString(id) {
		return fmt.Errorf("invalid slack user id: %s", id)
	}
	return nil
}

// NormalizeOffice turns a free-text location ("New York ") into the office
// tag used for queue partitioning ("new-york").
func NormalizeOffice(office string) string {
	return slug.Make(strings.TrimSpace(office))
}

// ValidateRegistration checks and normalizes registration input in place.
func ValidateRegistration(p *RegisterPlayerParams) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrValidation("name is required")
	}
	if len(p.Name) > MaxNameLength {
		return ErrValidation(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	p.Office = NormalizeOffice(p.Office)
	if p.Office == "" {
		return ErrValidation("office is required")
	}
	if p.Email != nil && *p.Email != "" {
		if err := ValidateEmail(*p.Email); err != nil {
			return ErrValidation(err.Error())
		}
	}
	if p.SlackUserID != nil && *p.SlackUserID != "" {
		if err := ValidateSlackUserID(*p.SlackUserID); err != nil {
			return ErrValidation(err.Error())
		}
	}
	return nil
}

// ValidateUpdate checks and normalizes profile changes in place.
func ValidateUpdate(u *UpdatePlayerParams) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return ErrValidation("name cannot be empty")
		}
		if len(name) > MaxNameLength {
			return ErrValidation(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
		}
		u.Name = &name
	}
	if u.Office != nil {
		office := NormalizeOffice(*u.Office)
		if office == "" {
			return ErrValidation("office cannot be empty")
		}
		u.Office = &office
	}
	if u.Email != nil && *u.Email != "" {
		if err := ValidateEmail(*u.Email); err != nil {
			return ErrValidation(err.Error())
		}
	}
	if u.SlackUserID != nil && *u.SlackUserID != "" {
		if err := ValidateSlackUserID(*u.SlackUserID); err != nil {
			return ErrValidation(err.Error())
		}
	}
	return nil
}
