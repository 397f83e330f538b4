package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockBackendPinger struct {
	err error
}

func (m *mockBackendPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_BackendHealthy(t *testing.T) {
	svc := New(&mockBackendPinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["backend"] != CheckOK {
		t.Errorf("expected backend %q, got %q", CheckOK, r.Checks["backend"])
	}
}

func TestCheck_BackendDown(t *testing.T) {
	svc := New(&mockBackendPinger{err: errors.New("conn refused")})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["backend"] != CheckError {
		t.Errorf("expected backend %q, got %q", CheckError, r.Checks["backend"])
	}
}
