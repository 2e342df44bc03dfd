package record

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/notify"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/metrics"
)

// Recorder appends classified outcomes to the statistics sink and notifies on
// success-like ones. Both sinks are best-effort: a failed write or delivery is
// logged and never breaks the invocation.
type Recorder struct {
	target   string
	location string
	outcomes storage.OutcomeRepository
	notifier notify.Notifier
	log      *slog.Logger
}

// NewRecorder creates a recorder for the given target.
func NewRecorder(
	target, location string,
	outcomes storage.OutcomeRepository,
	notifier notify.Notifier,
) *Recorder {
	return &Recorder{
		target:   target,
		location: location,
		outcomes: outcomes,
		notifier: notifier,
		log:      slog.Default().With("component", "record", "target", target),
	}
}

// Record persists the outcome and fires a notification when warranted.
func (r *Recorder) Record(ctx context.Context, out domain.AttemptOutcome) {
	metrics.AttemptsTotal.WithLabelValues(r.target, string(out.Code)).Inc()

	rec := &domain.OutcomeRecord{
		ID:         uuid.NewString(),
		Target:     r.target,
		Location:   r.location,
		Outcome:    out.Code,
		Notes:      r.notes(out),
		DetectedAt: time.Now(),
	}
	if err := r.outcomes.Append(ctx, rec); err != nil {
		r.log.Warn("failed to append outcome record", "error", err)
	}

	if out.Code.SuccessLike() {
		if err := r.notifier.Send(ctx, r.message(out)); err != nil {
			r.log.Warn("failed to deliver notification", "error", err)
		}
	}
}

func (r *Recorder) notes(out domain.AttemptOutcome) string {
	notes := out.Detail
	if out.Identity != "" {
		notes = fmt.Sprintf("%s (identity=%s ip=%s)", notes, out.Identity, out.EgressIP)
	}
	return notes
}

func (r *Recorder) message(out domain.AttemptOutcome) string {
	switch out.Code {
	case domain.OutcomeCaptchaRequired:
		return fmt.Sprintf(
			"Slots may be available at %s (%s), but a captcha is required. %s",
			r.target, r.location, out.Detail,
		)
	default:
		return fmt.Sprintf("Slots found at %s (%s)! %s", r.target, r.location, out.Detail)
	}
}
