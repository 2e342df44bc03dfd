package probe

import (
	"context"

	"slotwatch/internal/core/domain"
)

// Context carries the network and account identity a probe attempt runs under.
type Context struct {
	TargetName string
	TargetURL  string
	Identity   domain.NetworkIdentity
	EgressIP   string
	// Credential is nil for targets that do not require per-account identity.
	Credential *domain.Credential
}

// Result is the classified outcome of a single probe attempt.
type Result struct {
	Code   domain.OutcomeCode
	Detail string
}

// Prober runs a single external attempt to observe appointment availability.
// The orchestrator treats the probe as opaque beyond the returned outcome.
type Prober interface {
	Probe(ctx context.Context, pctx Context) (Result, error)
}
