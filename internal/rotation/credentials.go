package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/metrics"
)

// ErrCredentialsExhausted is returned when no eligible credential remains
// after a full wrap over the configured set.
var ErrCredentialsExhausted = errors.New("all credentials blocked or excluded")

// CredentialRotator round-robins over the configured credential set. The
// rotation pointer is persisted per target and always advanced to the
// position after the returned credential, so replaying the same calls against
// the same persisted state yields the same sequence.
type CredentialRotator struct {
	target       string
	creds        []domain.Credential
	state        storage.StateRepository
	blocklist    storage.BlocklistRepository
	recheckAfter time.Duration
	log          *slog.Logger
}

// NewCredentialRotator creates a rotator for the given target.
func NewCredentialRotator(
	target string,
	creds []domain.Credential,
	state storage.StateRepository,
	blocklist storage.BlocklistRepository,
	recheckAfter time.Duration,
) *CredentialRotator {
	return &CredentialRotator{
		target:       target,
		creds:        creds,
		state:        state,
		blocklist:    blocklist,
		recheckAfter: recheckAfter,
		log:          slog.Default().With("component", "rotation", "target", target),
	}
}

// Next returns the first eligible credential at or after the persisted
// pointer, scanning forward and wrapping once. Credentials in exclude or on
// the persisted blocklist are skipped. The pointer is persisted to the
// position after the returned credential before it is handed out.
func (r *CredentialRotator) Next(
	ctx context.Context,
	exclude map[string]bool,
) (domain.Credential, error) {
	if len(r.creds) == 0 {
		return domain.Credential{}, ErrCredentialsExhausted
	}

	start, err := r.state.RotationPointer(ctx, r.target)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to read rotation pointer: %w", err)
	}
	// A pointer persisted against a longer credential set stays consistent
	// under modulo.
	start %= len(r.creds)

	for i := 0; i < len(r.creds); i++ {
		idx := (start + i) % len(r.creds)
		cred := r.creds[idx]

		if exclude[cred.ID] {
			continue
		}
		blocked, err := r.blocklist.IsBlocked(ctx, cred.ID, r.target, r.recheckAfter)
		if err != nil {
			return domain.Credential{}, fmt.Errorf("failed to check credential blocklist: %w", err)
		}
		if blocked {
			r.log.Debug("skipping blocked credential", "credential", cred.ID)
			continue
		}

		next := (idx + 1) % len(r.creds)
		if err := r.state.SetRotationPointer(ctx, r.target, next); err != nil {
			return domain.Credential{}, fmt.Errorf("failed to persist rotation pointer: %w", err)
		}

		metrics.CredentialRotationsTotal.WithLabelValues(r.target).Inc()
		r.log.Info("selected credential", "credential", cred.ID, "pointer", next)
		return cred, nil
	}

	return domain.Credential{}, ErrCredentialsExhausted
}

// MarkBlocked records the credential as rejected by the target. Permanent
// unless a recheck window is configured.
func (r *CredentialRotator) MarkBlocked(
	ctx context.Context,
	cred domain.Credential,
	reason string,
) error {
	entry := &domain.BlocklistEntry{
		Subject:   cred.ID,
		Kind:      domain.SubjectCredential,
		Category:  r.target,
		Reason:    reason,
		BlockedAt: time.Now(),
	}
	if err := r.blocklist.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to blocklist credential %s: %w", cred.ID, err)
	}
	r.log.Warn("credential blocklisted", "credential", cred.ID, "reason", reason)
	return nil
}
