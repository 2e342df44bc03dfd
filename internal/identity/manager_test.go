package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"slotwatch/internal/core/domain"
)

// fakeRunner scripts command results by the first argv element.
type fakeRunner struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, argv []string) (string, error) {
	key := strings.Join(argv, " ")
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return "", fmt.Errorf("exit status 1")
	}
	return "", nil
}

var testIdentity = domain.NetworkIdentity{
	Name:   "tun-a",
	Up:     []string{"up", "tun-a"},
	Down:   []string{"down", "tun-a"},
	Status: []string{"status", "tun-a"},
}

func newTestManager(runner CommandRunner) *Manager {
	return NewManager(runner, time.Millisecond, time.Second)
}

func TestActivate(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{}}
	m := newTestManager(runner)

	if err := m.Activate(context.Background(), testIdentity); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
}

func TestActivateAlreadyActive(t *testing.T) {
	// Up command fails but the status query shows the identity active, e.g.
	// left up by a crashed run. Not an error.
	runner := &fakeRunner{fail: map[string]bool{"up tun-a": true}}
	m := newTestManager(runner)

	if err := m.Activate(context.Background(), testIdentity); err != nil {
		t.Fatalf("Activate failed for already-active identity: %v", err)
	}
}

func TestActivateHardFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{
		"up tun-a":     true,
		"status tun-a": true,
	}}
	m := newTestManager(runner)

	err := m.Activate(context.Background(), testIdentity)
	if !errors.Is(err, ErrActivationFailed) {
		t.Fatalf("Expected ErrActivationFailed, got %v", err)
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	// Status reports inactive: deactivate must be a no-op, not an error.
	runner := &fakeRunner{fail: map[string]bool{"status tun-a": true}}
	m := newTestManager(runner)

	if err := m.Deactivate(context.Background(), testIdentity); err != nil {
		t.Fatalf("Deactivate of inactive identity failed: %v", err)
	}
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "down") {
			t.Errorf("Down command ran for inactive identity")
		}
	}
}

func TestDeactivateActive(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{}}
	m := newTestManager(runner)

	if err := m.Deactivate(context.Background(), testIdentity); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	ranDown := false
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "down") {
			ranDown = true
		}
	}
	if !ranDown {
		t.Errorf("Down command did not run for active identity")
	}
}

func TestExecRunner(t *testing.T) {
	var r ExecRunner

	out, err := r.Run(context.Background(), []string{"echo", "hello"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("Run output = %q, want %q", out, "hello")
	}

	if _, err := r.Run(context.Background(), []string{"false"}); err == nil {
		t.Errorf("Expected error for failing command")
	}

	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Errorf("Expected error for empty command")
	}
}
