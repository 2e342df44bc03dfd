package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/metrics"
	"slotwatch/internal/probe"
)

var (
	// ErrIdentitiesExhausted is returned when every configured identity has
	// been tried in this invocation.
	ErrIdentitiesExhausted = errors.New("all identities tried")

	// ErrRotationLimit is returned when identity rotations triggered by
	// target-reported blocks exceed the configured ceiling.
	ErrRotationLimit = errors.New("identity rotation limit exceeded")
)

// IdentityManager activates and deactivates network identities.
type IdentityManager interface {
	Activate(ctx context.Context, id domain.NetworkIdentity) error
	Deactivate(ctx context.Context, id domain.NetworkIdentity) error
}

// Validator checks that the current egress point is usable.
type Validator interface {
	CurrentEgressIP(ctx context.Context, identityName string) (string, error)
	IsBlocked(ctx context.Context, ip, target string) (bool, error)
	TargetReachable(ctx context.Context, url string) bool
}

// CredentialSource supplies the next usable credential.
type CredentialSource interface {
	Next(ctx context.Context, exclude map[string]bool) (domain.Credential, error)
	MarkBlocked(ctx context.Context, cred domain.Credential, reason string) error
}

// CooldownTrigger arms the captcha cooldown.
type CooldownTrigger interface {
	Trigger(ctx context.Context, n int) error
}

// Config bounds one invocation.
type Config struct {
	Target               string
	TargetURL            string
	RequiresCredentials  bool
	MaxIdentityRotations int
	CooldownSkips        int
	TeardownTimeout      time.Duration
}

// Orchestrator drives one end-to-end attempt: identity selection, activation,
// validation, credential selection, probe, classification, and the
// retry/rotate/abort decision. It runs single-threaded; concurrency exists
// only across invocations in time.
type Orchestrator struct {
	cfg        Config
	identities []domain.NetworkIdentity
	manager    IdentityManager
	validator  Validator
	creds      CredentialSource
	cooldown   CooldownTrigger
	blocklist  storage.BlocklistRepository
	prober     probe.Prober
	log        *slog.Logger
}

// New creates an orchestrator. creds may be nil when the target does not
// require per-account identity.
func New(
	cfg Config,
	identities []domain.NetworkIdentity,
	manager IdentityManager,
	validator Validator,
	creds CredentialSource,
	cooldown CooldownTrigger,
	blocklist storage.BlocklistRepository,
	prober probe.Prober,
) *Orchestrator {
	if cfg.TeardownTimeout == 0 {
		cfg.TeardownTimeout = 30 * time.Second
	}
	return &Orchestrator{
		cfg:        cfg,
		identities: identities,
		manager:    manager,
		validator:  validator,
		creds:      creds,
		cooldown:   cooldown,
		blocklist:  blocklist,
		prober:     prober,
		log:        slog.Default().With("component", "orchestrator", "target", cfg.Target),
	}
}

// Run executes one invocation. The returned outcome carries the terminal
// classification; exhaustion conditions are reported through the sentinel
// errors without an outcome. Whatever identity is active when Run exits is
// deactivated on every path, including cancellation.
func (o *Orchestrator) Run(ctx context.Context) (out domain.AttemptOutcome, err error) {
	tried := make(map[string]bool)
	excludedCreds := make(map[string]bool)
	rotations := 0

	var active *domain.NetworkIdentity
	// Teardown runs with its own context so a cancelled invocation still
	// releases the tunnel.
	defer func() {
		if active != nil {
			o.teardown(*active)
		}
	}()

identityLoop:
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		id, ok := o.selectIdentity(tried)
		if !ok {
			return out, fmt.Errorf("%w for target %s", ErrIdentitiesExhausted, o.cfg.Target)
		}
		tried[id.Name] = true

		// Activating
		if err := o.manager.Activate(ctx, id); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			o.log.Warn("activation failed, rotating identity", "identity", id.Name, "error", err)
			metrics.IdentityRotationsTotal.WithLabelValues(o.cfg.Target, "activation_failed").Inc()
			continue
		}
		active = &id

		// Validating
		ip, ok := o.validate(ctx, id)
		if !ok {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			o.teardown(id)
			active = nil
			continue
		}

		// Probing with this identity, reselecting credentials in place
		for {
			var cred *domain.Credential
			if o.cfg.RequiresCredentials {
				c, err := o.creds.Next(ctx, excludedCreds)
				if err != nil {
					return out, fmt.Errorf("credential selection for target %s: %w", o.cfg.Target, err)
				}
				cred = &c
			}

			res, err := o.prober.Probe(ctx, probe.Context{
				TargetName: o.cfg.Target,
				TargetURL:  o.cfg.TargetURL,
				Identity:   id,
				EgressIP:   ip,
				Credential: cred,
			})
			if err != nil {
				// An unclassified probe failure is terminal: retrying it
				// would mask a non-network bug as network noise.
				out = o.outcome(domain.OutcomeError, err.Error(), id, ip, cred)
				return out, nil
			}

			out = o.outcome(res.Code, res.Detail, id, ip, cred)

			// Classifying
			switch res.Code {
			case domain.OutcomeCredentialBlocked:
				if cred == nil {
					// A credential-less probe has no business reporting this.
					return out, nil
				}
				if err := o.creds.MarkBlocked(ctx, *cred, "reported blocked by target"); err != nil {
					o.log.Warn("failed to persist credential block", "error", err)
				}
				excludedCreds[cred.ID] = true
				// Same identity retained
				continue

			case domain.OutcomeIdentityBlocked:
				o.blocklistIP(ctx, ip, res.Detail)
				o.teardown(id)
				active = nil
				rotations++
				metrics.IdentityRotationsTotal.WithLabelValues(o.cfg.Target, "identity_blocked").Inc()
				if rotations >= o.cfg.MaxIdentityRotations {
					return out, fmt.Errorf("%w (%d) for target %s",
						ErrRotationLimit, o.cfg.MaxIdentityRotations, o.cfg.Target)
				}
				continue identityLoop

			case domain.OutcomeCaptchaRequired:
				if err := o.cooldown.Trigger(ctx, o.cfg.CooldownSkips); err != nil {
					o.log.Error("failed to trigger cooldown", "error", err)
				}
				return out, nil

			default:
				// success, no_availability, connectivity_failure, error
				return out, nil
			}
		}
	}
}

// selectIdentity returns the first configured identity not yet tried in this
// invocation. The tried set is local state, reset per invocation.
func (o *Orchestrator) selectIdentity(tried map[string]bool) (domain.NetworkIdentity, bool) {
	for _, id := range o.identities {
		if !tried[id.Name] {
			return id, true
		}
	}
	return domain.NetworkIdentity{}, false
}

// validate resolves the egress IP, checks the blocklist, and confirms the
// target answers. Returns false when the identity must be rotated.
func (o *Orchestrator) validate(ctx context.Context, id domain.NetworkIdentity) (string, bool) {
	ip, err := o.validator.CurrentEgressIP(ctx, id.Name)
	if err != nil {
		o.log.Warn("egress lookup failed, rotating identity", "identity", id.Name, "error", err)
		metrics.IdentityRotationsTotal.WithLabelValues(o.cfg.Target, "lookup_failed").Inc()
		return "", false
	}

	blocked, err := o.validator.IsBlocked(ctx, ip, o.cfg.Target)
	if err != nil {
		o.log.Warn("blocklist check failed, rotating identity", "identity", id.Name, "error", err)
		return "", false
	}
	if blocked {
		o.log.Info("egress IP is blocklisted, rotating identity", "identity", id.Name, "ip", ip)
		metrics.IdentityRotationsTotal.WithLabelValues(o.cfg.Target, "blocklisted_ip").Inc()
		return "", false
	}

	if !o.validator.TargetReachable(ctx, o.cfg.TargetURL) {
		o.log.Warn("target unreachable, rotating identity", "identity", id.Name, "ip", ip)
		metrics.IdentityRotationsTotal.WithLabelValues(o.cfg.Target, "unreachable").Inc()
		return "", false
	}

	return ip, true
}

func (o *Orchestrator) blocklistIP(ctx context.Context, ip, reason string) {
	if reason == "" {
		reason = "reported blocked by target"
	}
	err := o.blocklist.Add(ctx, &domain.BlocklistEntry{
		Subject:   ip,
		Kind:      domain.SubjectIP,
		Category:  o.cfg.Target,
		Reason:    reason,
		BlockedAt: time.Now(),
	})
	if err != nil {
		o.log.Warn("failed to blocklist egress IP", "ip", ip, "error", err)
	}
}

func (o *Orchestrator) teardown(id domain.NetworkIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TeardownTimeout)
	defer cancel()
	if err := o.manager.Deactivate(ctx, id); err != nil {
		o.log.Error("identity teardown failed", "identity", id.Name, "error", err)
	}
}

func (o *Orchestrator) outcome(
	code domain.OutcomeCode,
	detail string,
	id domain.NetworkIdentity,
	ip string,
	cred *domain.Credential,
) domain.AttemptOutcome {
	out := domain.AttemptOutcome{
		Code:     code,
		Detail:   detail,
		Identity: id.Name,
		EgressIP: ip,
	}
	if cred != nil {
		out.CredentialID = cred.ID
	}
	return out
}
