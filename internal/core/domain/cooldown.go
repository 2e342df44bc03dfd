package domain

import "time"

// CooldownState suppresses execution for the next RemainingSkips invocations
// after a captcha signal. Absence of the record is equivalent to zero.
type CooldownState struct {
	RemainingSkips int       `json:"remaining_skips"`
	CreatedAt      time.Time `json:"created_at"`
}
