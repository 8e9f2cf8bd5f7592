package breaker

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("test", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}
	if !b.Open() {
		t.Fatalf("breaker should be open after 3 failures")
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Errorf("open breaker must not invoke the function")
	}
}

func TestBreakerClosedResetsOnSuccess(t *testing.T) {
	b := New("test", 3, time.Minute)

	b.Do(func() error { return errBackend })
	b.Do(func() error { return errBackend })
	b.Do(func() error { return nil })
	b.Do(func() error { return errBackend })
	b.Do(func() error { return errBackend })

	if b.Open() {
		t.Errorf("success should reset the failure streak")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)

	b.Do(func() error { return errBackend })
	if !b.Open() {
		t.Fatalf("breaker should open")
	}

	time.Sleep(20 * time.Millisecond)

	// Two successful probes close the circuit.
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if b.Open() {
		t.Errorf("breaker should close after successful probes")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)

	b.Do(func() error { return errBackend })
	time.Sleep(20 * time.Millisecond)

	b.Do(func() error { return errBackend })
	if !b.Open() {
		t.Errorf("failed probe must reopen the circuit")
	}
}
