package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"slotwatch/internal/core/domain"
	"slotwatch/internal/infra/storage/memory"
	"slotwatch/internal/probe"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeManager struct {
	activated   []string
	deactivated []string
	failFor     map[string]bool
}

func (m *fakeManager) Activate(ctx context.Context, id domain.NetworkIdentity) error {
	if m.failFor[id.Name] {
		return fmt.Errorf("tunnel %s refused to come up", id.Name)
	}
	m.activated = append(m.activated, id.Name)
	return nil
}

func (m *fakeManager) Deactivate(ctx context.Context, id domain.NetworkIdentity) error {
	m.deactivated = append(m.deactivated, id.Name)
	return nil
}

type fakeValidator struct {
	ips         map[string]string
	blockedIPs  map[string]bool
	unreachable bool
	lookupErr   map[string]bool
}

func (v *fakeValidator) CurrentEgressIP(ctx context.Context, identityName string) (string, error) {
	if v.lookupErr[identityName] {
		return "", errors.New("all lookup services failed")
	}
	ip, ok := v.ips[identityName]
	if !ok {
		return "", errors.New("no ip configured")
	}
	return ip, nil
}

func (v *fakeValidator) IsBlocked(ctx context.Context, ip, target string) (bool, error) {
	return v.blockedIPs[ip], nil
}

func (v *fakeValidator) TargetReachable(ctx context.Context, url string) bool {
	return !v.unreachable
}

type fakeCreds struct {
	pool    []domain.Credential
	blocked map[string]bool
	marked  []string
}

func (c *fakeCreds) Next(ctx context.Context, exclude map[string]bool) (domain.Credential, error) {
	for _, cred := range c.pool {
		if !exclude[cred.ID] && !c.blocked[cred.ID] {
			return cred, nil
		}
	}
	return domain.Credential{}, errors.New("all credentials blocked or excluded")
}

func (c *fakeCreds) MarkBlocked(ctx context.Context, cred domain.Credential, reason string) error {
	if c.blocked == nil {
		c.blocked = make(map[string]bool)
	}
	c.blocked[cred.ID] = true
	c.marked = append(c.marked, cred.ID)
	return nil
}

type fakeCooldown struct {
	triggered []int
}

func (c *fakeCooldown) Trigger(ctx context.Context, n int) error {
	c.triggered = append(c.triggered, n)
	return nil
}

// scriptedProber returns results in order, keyed by call count.
type scriptedProber struct {
	results []probe.Result
	errs    []error
	calls   []probe.Context
}

func (p *scriptedProber) Probe(ctx context.Context, pctx probe.Context) (probe.Result, error) {
	i := len(p.calls)
	p.calls = append(p.calls, pctx)
	if i < len(p.errs) && p.errs[i] != nil {
		return probe.Result{}, p.errs[i]
	}
	if i >= len(p.results) {
		return probe.Result{Code: domain.OutcomeError, Detail: "script exhausted"}, nil
	}
	return p.results[i], nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func identities(names ...string) []domain.NetworkIdentity {
	ids := make([]domain.NetworkIdentity, 0, len(names))
	for _, n := range names {
		ids = append(ids, domain.NetworkIdentity{
			Name: n,
			Up:   []string{"true"},
			Down: []string{"true"},
		})
	}
	return ids
}

type fixture struct {
	orch      *Orchestrator
	manager   *fakeManager
	validator *fakeValidator
	creds     *fakeCreds
	cooldown  *fakeCooldown
	prober    *scriptedProber
	blocklist *memory.BlocklistRepo
}

func newFixture(cfg Config, ids []domain.NetworkIdentity, prober *scriptedProber) *fixture {
	if cfg.Target == "" {
		cfg.Target = "hungary"
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = "https://booking.example.com"
	}
	if cfg.MaxIdentityRotations == 0 {
		cfg.MaxIdentityRotations = 3
	}
	if cfg.CooldownSkips == 0 {
		cfg.CooldownSkips = 2
	}

	ips := make(map[string]string)
	for i, id := range ids {
		ips[id.Name] = fmt.Sprintf("203.0.113.%d", i+1)
	}

	f := &fixture{
		manager:   &fakeManager{failFor: map[string]bool{}},
		validator: &fakeValidator{ips: ips, blockedIPs: map[string]bool{}, lookupErr: map[string]bool{}},
		creds:     &fakeCreds{pool: []domain.Credential{{ID: "c1"}, {ID: "c2"}}},
		cooldown:  &fakeCooldown{},
		prober:    prober,
		blocklist: memory.NewBlocklistRepo(memory.NewMemoryStorage()),
	}
	f.orch = New(cfg, ids, f.manager, f.validator, f.creds, f.cooldown, f.blocklist, f.prober)
	return f
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestRunSuccessFirstIdentity(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeSuccess, Detail: "slot found"}}}
	f := newFixture(Config{}, identities("vpn-a", "vpn-b"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", out.Code)
	}
	if out.Identity != "vpn-a" || out.EgressIP != "203.0.113.1" {
		t.Errorf("outcome attribution = %s/%s, want vpn-a/203.0.113.1", out.Identity, out.EgressIP)
	}
	if len(f.manager.activated) != 1 {
		t.Errorf("activated %v, want exactly vpn-a", f.manager.activated)
	}
	if len(f.manager.deactivated) != 1 || f.manager.deactivated[0] != "vpn-a" {
		t.Errorf("deactivated %v, want teardown of vpn-a", f.manager.deactivated)
	}
}

// An identity whose egress IP is already blocklisted is skipped before any
// probe; the next identity carries the attempt.
func TestRunSkipsBlockedEgress(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeNoAvailability}}}
	f := newFixture(Config{}, identities("vpn-a", "vpn-b"), prober)
	f.validator.blockedIPs["203.0.113.1"] = true

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Identity != "vpn-b" {
		t.Fatalf("probe ran under %s, want vpn-b", out.Identity)
	}
	if len(prober.calls) != 1 {
		t.Fatalf("probe called %d times, want 1", len(prober.calls))
	}
	// vpn-a came up, was found unusable, and must have been torn down again.
	if len(f.manager.deactivated) != 2 {
		t.Errorf("deactivated %v, want both identities torn down", f.manager.deactivated)
	}
}

func TestRunActivationFailureRotates(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeSuccess}}}
	f := newFixture(Config{}, identities("vpn-a", "vpn-b"), prober)
	f.manager.failFor["vpn-a"] = true

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Identity != "vpn-b" {
		t.Fatalf("probe ran under %s, want vpn-b", out.Identity)
	}
}

func TestRunIdentitiesExhausted(t *testing.T) {
	prober := &scriptedProber{}
	f := newFixture(Config{}, identities("vpn-a", "vpn-b"), prober)
	f.validator.lookupErr["vpn-a"] = true
	f.validator.lookupErr["vpn-b"] = true

	_, err := f.orch.Run(context.Background())
	if !errors.Is(err, ErrIdentitiesExhausted) {
		t.Fatalf("Expected ErrIdentitiesExhausted, got %v", err)
	}
	if len(prober.calls) != 0 {
		t.Errorf("probe called %d times, want 0", len(prober.calls))
	}
	if len(f.manager.deactivated) != 2 {
		t.Errorf("deactivated %v, want both identities torn down", f.manager.deactivated)
	}
}

// Identity rotations caused by target-reported blocks are capped; hitting the
// ceiling aborts the invocation with the sentinel.
func TestRunRotationCeiling(t *testing.T) {
	blocked := probe.Result{Code: domain.OutcomeIdentityBlocked, Detail: "403"}
	prober := &scriptedProber{results: []probe.Result{blocked, blocked}}
	f := newFixture(Config{MaxIdentityRotations: 2}, identities("vpn-a", "vpn-b", "vpn-c"), prober)

	out, err := f.orch.Run(context.Background())
	if !errors.Is(err, ErrRotationLimit) {
		t.Fatalf("Expected ErrRotationLimit, got %v", err)
	}
	if out.Code != domain.OutcomeIdentityBlocked {
		t.Errorf("outcome = %s, want identity_blocked", out.Code)
	}
	if len(prober.calls) != 2 {
		t.Errorf("probe called %d times, want 2", len(prober.calls))
	}

	// Both reported IPs must have landed on the blocklist.
	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		isBlocked, err := f.blocklist.IsBlocked(context.Background(), ip, "hungary", 0)
		if err != nil {
			t.Fatalf("IsBlocked failed: %v", err)
		}
		if !isBlocked {
			t.Errorf("Expected %s blocklisted", ip)
		}
	}
}

func TestRunIdentityBlockedRotatesAndRecovers(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{
		{Code: domain.OutcomeIdentityBlocked, Detail: "403"},
		{Code: domain.OutcomeSuccess, Detail: "slot found"},
	}}
	f := newFixture(Config{}, identities("vpn-a", "vpn-b"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeSuccess || out.Identity != "vpn-b" {
		t.Fatalf("outcome = %s under %s, want success under vpn-b", out.Code, out.Identity)
	}
}

// A credential rejection keeps the tunnel up and retries with the next
// credential under the same identity.
func TestRunCredentialBlockedRetainsIdentity(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{
		{Code: domain.OutcomeCredentialBlocked, Detail: "account disabled"},
		{Code: domain.OutcomeNoAvailability},
	}}
	f := newFixture(Config{RequiresCredentials: true}, identities("vpn-a", "vpn-b"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeNoAvailability {
		t.Fatalf("outcome = %s, want no_availability", out.Code)
	}
	if out.Identity != "vpn-a" || out.CredentialID != "c2" {
		t.Errorf("attempt attribution = %s/%s, want vpn-a/c2", out.Identity, out.CredentialID)
	}
	if len(f.creds.marked) != 1 || f.creds.marked[0] != "c1" {
		t.Errorf("marked %v, want c1 blocked", f.creds.marked)
	}
	if len(f.manager.activated) != 1 {
		t.Errorf("activated %v, want a single activation", f.manager.activated)
	}
}

func TestRunCredentialsExhausted(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{
		{Code: domain.OutcomeCredentialBlocked},
		{Code: domain.OutcomeCredentialBlocked},
	}}
	f := newFixture(Config{RequiresCredentials: true}, identities("vpn-a"), prober)

	_, err := f.orch.Run(context.Background())
	if err == nil {
		t.Fatal("Expected error when every credential is blocked")
	}
	if len(f.manager.deactivated) != 1 {
		t.Errorf("deactivated %v, want teardown despite the error", f.manager.deactivated)
	}
}

func TestRunCaptchaTriggersCooldown(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeCaptchaRequired}}}
	f := newFixture(Config{CooldownSkips: 4}, identities("vpn-a"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeCaptchaRequired {
		t.Fatalf("outcome = %s, want captcha_required", out.Code)
	}
	if len(f.cooldown.triggered) != 1 || f.cooldown.triggered[0] != 4 {
		t.Errorf("cooldown triggers = %v, want one trigger of 4", f.cooldown.triggered)
	}
}

// Whatever happens inside the probe, the active identity is deactivated
// before Run returns.
func TestRunTeardownOnProbeError(t *testing.T) {
	prober := &scriptedProber{errs: []error{errors.New("probe binary missing")}}
	f := newFixture(Config{}, identities("vpn-a"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeError {
		t.Fatalf("outcome = %s, want error", out.Code)
	}
	if len(f.manager.deactivated) != 1 || f.manager.deactivated[0] != "vpn-a" {
		t.Errorf("deactivated %v, want vpn-a torn down", f.manager.deactivated)
	}
}

func TestRunContextCancelled(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeSuccess}}}
	f := newFixture(Config{}, identities("vpn-a"), prober)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(f.manager.activated) != 0 {
		t.Errorf("activated %v, want none after cancellation", f.manager.activated)
	}
}

func TestRunCredentiallessProbeCannotBlockCredential(t *testing.T) {
	prober := &scriptedProber{results: []probe.Result{{Code: domain.OutcomeCredentialBlocked}}}
	f := newFixture(Config{RequiresCredentials: false}, identities("vpn-a"), prober)

	out, err := f.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Code != domain.OutcomeCredentialBlocked {
		t.Fatalf("outcome = %s, want credential_blocked passed through", out.Code)
	}
	if len(f.creds.marked) != 0 {
		t.Errorf("marked %v, want no credential touched", f.creds.marked)
	}
}
