package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/metrics"
)

// Config holds validator settings.
type Config struct {
	// Services are IP-reflection endpoints returning a literal IP address
	// string, tried in order.
	Services []string
	// LookupTimeout bounds each reflection request.
	LookupTimeout time.Duration
	// ReachabilityAttempts bounds TargetReachable retries.
	ReachabilityAttempts int
	// ReachabilityDelay is the fixed delay between reachability attempts.
	ReachabilityDelay time.Duration
	// ReachabilityTimeout bounds each reachability request.
	ReachabilityTimeout time.Duration
	// RecheckAfter ages out blocklist entries; zero means never.
	RecheckAfter time.Duration
}

// Validator confirms that the current egress point is usable: it resolves the
// externally visible IP, checks it against the blocklist, and verifies the
// target endpoint responds.
type Validator struct {
	cfg       Config
	client    *http.Client
	blocklist storage.BlocklistRepository
	lookups   storage.LookupRepository
	log       *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(
	cfg Config,
	blocklist storage.BlocklistRepository,
	lookups storage.LookupRepository,
) *Validator {
	return &Validator{
		cfg:       cfg,
		client:    &http.Client{},
		blocklist: blocklist,
		lookups:   lookups,
		log:       slog.Default().With("component", "connectivity"),
	}
}

// CurrentEgressIP queries the reflection services in order and returns the
// first response that parses as an IP address. Every completed lookup is
// recorded in the audit log regardless of block status.
func (v *Validator) CurrentEgressIP(ctx context.Context, identityName string) (string, error) {
	var lastErr error
	for _, service := range v.cfg.Services {
		ip, err := v.lookupOne(ctx, service)
		if err != nil {
			metrics.EgressLookupsTotal.WithLabelValues(service, "error").Inc()
			v.log.Warn("egress lookup failed, trying next service",
				"service", service, "error", err)
			lastErr = err
			continue
		}
		metrics.EgressLookupsTotal.WithLabelValues(service, "ok").Inc()

		if err := v.lookups.Record(ctx, &domain.EgressLookup{
			IP:         ip,
			Identity:   identityName,
			LookedUpAt: time.Now(),
		}); err != nil {
			// Audit data, not control data
			v.log.Warn("failed to record egress lookup", "error", err)
		}
		return ip, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no lookup services configured")
	}
	return "", fmt.Errorf("all egress lookups failed: %w", lastErr)
}

func (v *Validator) lookupOne(ctx context.Context, service string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, v.cfg.LookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, service, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}

	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("response %q is not an IP address", ip)
	}
	return ip, nil
}

// IsBlocked checks the egress IP against the blocklist for the given target.
func (v *Validator) IsBlocked(ctx context.Context, ip, target string) (bool, error) {
	return v.blocklist.IsBlocked(ctx, ip, target, v.cfg.RecheckAfter)
}

// TargetReachable reports whether the target URL answers within the attempt
// ceiling. Any transport error, non-response, or timeout counts as
// unreachable for that attempt.
func (v *Validator) TargetReachable(ctx context.Context, url string) bool {
	backoff := retry.WithMaxRetries(
		uint64(v.cfg.ReachabilityAttempts-1),
		retry.NewConstant(v.cfg.ReachabilityDelay),
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := v.checkOnce(ctx, url); err != nil {
			v.log.Debug("target not reachable, retrying", "url", url, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return err == nil
}

// checkOnce issues a HEAD request, falling back to GET when the target
// rejects HEAD outright.
func (v *Validator) checkOnce(ctx context.Context, url string) error {
	reqCtx, cancel := context.WithTimeout(ctx, v.cfg.ReachabilityTimeout)
	defer cancel()

	status, err := v.request(reqCtx, http.MethodHead, url)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = v.request(reqCtx, http.MethodGet, url)
	}
	if err != nil {
		return err
	}
	if status < 200 || status > 399 {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (v *Validator) request(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode, nil
}
