package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slotwatch/internal/core/domain"
)

// ErrActivationFailed is returned when an identity's up command fails and the
// status query confirms the identity is not active.
var ErrActivationFailed = errors.New("identity activation failed")

// Manager brings network identities up and down through their configured
// commands. Activation mutates live routing state of the host, so callers
// must pair every successful Activate with a Deactivate on all exit paths.
type Manager struct {
	runner         CommandRunner
	settleDelay    time.Duration
	commandTimeout time.Duration
	log            *slog.Logger
}

// NewManager creates an identity manager.
func NewManager(runner CommandRunner, settleDelay, commandTimeout time.Duration) *Manager {
	return &Manager{
		runner:         runner,
		settleDelay:    settleDelay,
		commandTimeout: commandTimeout,
		log:            slog.Default().With("component", "identity"),
	}
}

// Activate brings the identity up and waits for the settle delay. A failed up
// command is not a hard failure if the status query shows the identity active
// (a prior crashed run may have left it up).
func (m *Manager) Activate(ctx context.Context, id domain.NetworkIdentity) error {
	runCtx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	out, err := m.runner.Run(runCtx, id.Up)
	if err != nil {
		if !m.IsActive(ctx, id) {
			m.log.Error("activation failed", "identity", id.Name, "output", out, "error", err)
			return fmt.Errorf("%w: %s: %v", ErrActivationFailed, id.Name, err)
		}
		m.log.Info("up command failed but identity is active, continuing",
			"identity", id.Name, "error", err)
	}

	// Egress routing may not be effective the moment the tunnel reports up.
	select {
	case <-time.After(m.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	m.log.Info("identity activated", "identity", id.Name)
	return nil
}

// Deactivate brings the identity down. Idempotent: an already-inactive
// identity is a no-op, not an error.
func (m *Manager) Deactivate(ctx context.Context, id domain.NetworkIdentity) error {
	if !m.IsActive(ctx, id) {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	out, err := m.runner.Run(runCtx, id.Down)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s: %s: %w", id.Name, out, err)
	}
	m.log.Info("identity deactivated", "identity", id.Name)
	return nil
}

// IsActive queries the identity's status command. The status query runs with
// its own short timeout so a wedged status binary cannot mask a real
// activation failure.
func (m *Manager) IsActive(ctx context.Context, id domain.NetworkIdentity) bool {
	runCtx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	_, err := m.runner.Run(runCtx, id.Status)
	return err == nil
}
