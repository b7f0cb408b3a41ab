// Package guard holds in-process admission checks: per-key rate limiting for
// chat commands and a circuit breaker for the event relay.
package guard

import "time"

// Result is the outcome of a guard check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	Guard      string        `json:"guard,omitempty"`
	RetryAfter time.Duration `json:"-"`
}
