package control

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeSignal is a settable signal level with an optional injected error
type fakeSignal struct {
	mu    sync.Mutex
	level bool
	err   error
}

func (s *fakeSignal) Level() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, s.err
}

func (s *fakeSignal) set(level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func runArbiter(t *testing.T, signal Signal) *Arbiter {
	t.Helper()

	arbiter := NewArbiter(signal, 10*time.Millisecond, 2*time.Millisecond, testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- arbiter.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Arbiter did not stop after cancellation")
		}
	})

	return arbiter
}

func awaitMode(t *testing.T, arbiter *Arbiter, want Mode) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if arbiter.Current() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Arbiter never reached mode %s, stuck in %s", want, arbiter.Current())
}

func TestArbiterInitialMode(t *testing.T) {
	tests := []struct {
		name  string
		level bool
		want  Mode
	}{
		{"low selects receiving", false, ModeReceiving},
		{"high selects processing", true, ModeProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arbiter := runArbiter(t, &fakeSignal{level: tt.level})
			awaitMode(t, arbiter, tt.want)
		})
	}
}

func TestArbiterDebouncedTransition(t *testing.T) {
	signal := &fakeSignal{level: false}
	arbiter := runArbiter(t, signal)
	awaitMode(t, arbiter, ModeReceiving)

	signal.set(true)
	awaitMode(t, arbiter, ModeProcessing)

	signal.set(false)
	awaitMode(t, arbiter, ModeReceiving)
}

func TestArbiterIgnoresBounce(t *testing.T) {
	signal := &fakeSignal{level: false}
	arbiter := NewArbiter(signal, 50*time.Millisecond, 2*time.Millisecond, testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- arbiter.Run(ctx) }()

	awaitMode(t, arbiter, ModeReceiving)

	// Pulse shorter than the debounce window: the re-sample sees the
	// line back low and the transition must not commit.
	signal.set(true)
	time.Sleep(10 * time.Millisecond)
	signal.set(false)

	time.Sleep(150 * time.Millisecond)
	if arbiter.Current() != ModeReceiving {
		t.Errorf("Bounce committed a transition to %s", arbiter.Current())
	}

	cancel()
	<-done
}

func TestArbiterPublishesChanges(t *testing.T) {
	signal := &fakeSignal{level: false}
	arbiter := runArbiter(t, signal)

	select {
	case mode := <-arbiter.Changes():
		if mode != ModeReceiving {
			t.Errorf("Expected initial change to RECEIVING, got %s", mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No initial mode published")
	}

	signal.set(true)
	select {
	case mode := <-arbiter.Changes():
		if mode != ModeProcessing {
			t.Errorf("Expected change to PROCESSING, got %s", mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Transition not published")
	}
}

func TestArbiterSignalErrorOnStartup(t *testing.T) {
	signal := &fakeSignal{err: errors.New("pin gone")}
	arbiter := NewArbiter(signal, time.Millisecond, time.Millisecond, testLogger(), nil)

	if err := arbiter.Run(context.Background()); err == nil {
		t.Error("Expected error when the signal cannot be read at startup")
	}
}

func TestArbiterSurvivesTransientSignalError(t *testing.T) {
	signal := &fakeSignal{level: false}
	arbiter := runArbiter(t, signal)
	awaitMode(t, arbiter, ModeReceiving)

	signal.mu.Lock()
	signal.err = errors.New("transient read failure")
	signal.mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	signal.mu.Lock()
	signal.err = nil
	signal.level = true
	signal.mu.Unlock()

	awaitMode(t, arbiter, ModeProcessing)
}

func TestModeString(t *testing.T) {
	if ModeReceiving.String() != "RECEIVING" {
		t.Errorf("Unexpected string for ModeReceiving: %s", ModeReceiving)
	}
	if ModeProcessing.String() != "PROCESSING" {
		t.Errorf("Unexpected string for ModeProcessing: %s", ModeProcessing)
	}
}
