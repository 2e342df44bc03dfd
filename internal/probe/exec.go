package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/metrics"
)

// Probe process exit codes, the external contract with the page-automation
// collaborator.
const (
	ExitSuccess           = 0
	ExitNoAvailability    = 10
	ExitIdentityBlocked   = 20
	ExitCredentialBlocked = 21
	ExitCaptchaRequired   = 30
)

// ExecProber invokes the external page-automation probe as a subprocess and
// maps its exit status onto the outcome enum. The probe receives its context
// through SLOTWATCH_* environment variables; its last stdout line becomes the
// outcome detail.
type ExecProber struct {
	command []string
	timeout time.Duration
	log     *slog.Logger
}

// NewExecProber creates an exec-backed prober.
func NewExecProber(command []string, timeout time.Duration) *ExecProber {
	return &ExecProber{
		command: command,
		timeout: timeout,
		log:     slog.Default().With("component", "probe"),
	}
}

// Probe runs the external probe exactly once.
func (p *ExecProber) Probe(ctx context.Context, pctx Context) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.command[0], p.command[1:]...)
	cmd.Env = append(os.Environ(),
		"SLOTWATCH_TARGET="+pctx.TargetName,
		"SLOTWATCH_TARGET_URL="+pctx.TargetURL,
		"SLOTWATCH_IDENTITY="+pctx.Identity.Name,
		"SLOTWATCH_EGRESS_IP="+pctx.EgressIP,
	)
	if pctx.Credential != nil {
		cmd.Env = append(cmd.Env,
			"SLOTWATCH_CREDENTIAL_ID="+pctx.Credential.ID,
			"SLOTWATCH_CREDENTIAL_SECRET="+pctx.Credential.Secret,
		)
	}

	start := time.Now()
	out, err := cmd.Output()
	metrics.ProbeDuration.WithLabelValues(pctx.TargetName).Observe(time.Since(start).Seconds())

	detail := lastLine(string(out))

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Result{Code: domain.OutcomeConnectivityFailure, Detail: "probe timed out"}, nil
	}

	code := ExitSuccess
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("failed to run probe: %w", err)
		}
		code = exitErr.ExitCode()
	}

	result := Result{Code: ClassifyExitCode(code), Detail: detail}
	p.log.Info("probe finished", "exit_code", code, "outcome", result.Code)
	return result, nil
}

// ClassifyExitCode maps a probe process exit status onto the outcome enum.
// Unknown codes classify as unclassified error, never as a retry trigger.
func ClassifyExitCode(code int) domain.OutcomeCode {
	switch code {
	case ExitSuccess:
		return domain.OutcomeSuccess
	case ExitNoAvailability:
		return domain.OutcomeNoAvailability
	case ExitIdentityBlocked:
		return domain.OutcomeIdentityBlocked
	case ExitCredentialBlocked:
		return domain.OutcomeCredentialBlocked
	case ExitCaptchaRequired:
		return domain.OutcomeCaptchaRequired
	default:
		return domain.OutcomeError
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
