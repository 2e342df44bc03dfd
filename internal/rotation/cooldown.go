package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/metrics"
)

// CooldownGovernor suppresses whole invocations after a captcha signal. At
// most one cooldown record exists per target; absence is equivalent to zero
// remaining skips.
type CooldownGovernor struct {
	target string
	state  storage.StateRepository
	log    *slog.Logger
}

// NewCooldownGovernor creates a governor for the given target.
func NewCooldownGovernor(target string, state storage.StateRepository) *CooldownGovernor {
	return &CooldownGovernor{
		target: target,
		state:  state,
		log:    slog.Default().With("component", "cooldown", "target", target),
	}
}

// ShouldSkip reports whether this invocation must be suppressed. When it
// returns true the remaining-skip counter has already been decremented and
// persisted; the record is cleared once it reaches zero.
func (g *CooldownGovernor) ShouldSkip(ctx context.Context) (bool, error) {
	state, err := g.state.Cooldown(ctx, g.target)
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown: %w", err)
	}
	if state == nil || state.RemainingSkips <= 0 {
		if state != nil {
			// A zero record should not linger.
			_ = g.state.ClearCooldown(ctx, g.target)
		}
		return false, nil
	}

	state.RemainingSkips--
	if state.RemainingSkips == 0 {
		if err := g.state.ClearCooldown(ctx, g.target); err != nil {
			return false, fmt.Errorf("failed to clear cooldown: %w", err)
		}
	} else {
		if err := g.state.SetCooldown(ctx, g.target, state); err != nil {
			return false, fmt.Errorf("failed to persist cooldown: %w", err)
		}
	}

	metrics.CooldownSkipsTotal.WithLabelValues(g.target).Inc()
	g.log.Info("skipping invocation due to captcha cooldown",
		"remaining_skips", state.RemainingSkips, "detected_at", state.CreatedAt)
	return true, nil
}

// Trigger overwrites any existing cooldown with a fresh record of n skips.
// The most recent trigger reigns; triggers are not additive.
func (g *CooldownGovernor) Trigger(ctx context.Context, n int) error {
	state := &domain.CooldownState{
		RemainingSkips: n,
		CreatedAt:      time.Now(),
	}
	if err := g.state.SetCooldown(ctx, g.target, state); err != nil {
		return fmt.Errorf("failed to trigger cooldown: %w", err)
	}
	g.log.Warn("captcha cooldown triggered", "skips", n)
	return nil
}
