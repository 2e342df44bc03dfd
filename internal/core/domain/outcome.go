package domain

import "time"

// OutcomeCode classifies the result of a single probe attempt.
type OutcomeCode string

const (
	OutcomeSuccess             OutcomeCode = "success"
	OutcomeNoAvailability      OutcomeCode = "no_availability"
	OutcomeIdentityBlocked     OutcomeCode = "identity_blocked"
	OutcomeCredentialBlocked   OutcomeCode = "credential_blocked"
	OutcomeCaptchaRequired     OutcomeCode = "captcha_required"
	OutcomeConnectivityFailure OutcomeCode = "connectivity_failure"
	OutcomeError               OutcomeCode = "error"
)

// Terminal reports whether the orchestrator stops rotating on this code.
func (c OutcomeCode) Terminal() bool {
	switch c {
	case OutcomeIdentityBlocked, OutcomeCredentialBlocked:
		return false
	}
	return true
}

// SuccessLike reports whether the outcome should trigger a notification.
func (c OutcomeCode) SuccessLike() bool {
	return c == OutcomeSuccess || c == OutcomeCaptchaRequired
}

// AttemptOutcome is the classified result of one invocation, created and
// consumed within that invocation.
type AttemptOutcome struct {
	Code         OutcomeCode
	Detail       string
	Identity     string
	EgressIP     string
	CredentialID string
}

// OutcomeRecord is the persisted form of an outcome, appended to the
// run-statistics sink.
type OutcomeRecord struct {
	ID         string
	Target     string
	Location   string
	Outcome    OutcomeCode
	Notes      string
	DetectedAt time.Time
}

// EgressLookup is one completed IP-reflection lookup. Audit data, recorded
// regardless of block status.
type EgressLookup struct {
	IP         string
	Identity   string
	LookedUpAt time.Time
}
