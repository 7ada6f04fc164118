package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxlink/vox-capture-service/internal/metrics"
)

// Mode is the relay's operating mode, selected by the external signal
type Mode int

const (
	// ModeReceiving accepts file transfers over the serial link
	ModeReceiving Mode = iota
	// ModeProcessing runs the transcription and report pipeline
	ModeProcessing
)

func (m Mode) String() string {
	switch m {
	case ModeReceiving:
		return "RECEIVING"
	case ModeProcessing:
		return "PROCESSING"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Signal is one external boolean input. A low line selects receiving,
// a high line selects processing.
type Signal interface {
	Level() (bool, error)
}

// Arbiter samples the signal at a fixed interval and turns its level
// into the current mode. A level change only takes effect after it
// holds through the debounce delay and a second sample agrees, so a
// bouncing switch cannot flap the relay between modes.
type Arbiter struct {
	signal   Signal
	debounce time.Duration
	poll     time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	mode    Mode
	changes chan Mode
}

// NewArbiter creates an arbiter over the given signal
func NewArbiter(signal Signal, debounce, poll time.Duration, logger *slog.Logger, m *metrics.Metrics) *Arbiter {
	return &Arbiter{
		signal:   signal,
		debounce: debounce,
		poll:     poll,
		logger:   logger,
		metrics:  m,
		mode:     ModeReceiving,
		changes:  make(chan Mode, 4),
	}
}

// Current returns the mode as of the last accepted sample
func (a *Arbiter) Current() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Changes delivers accepted mode transitions. The channel is buffered;
// a slow consumer loses intermediate transitions, never the sampling
// loop.
func (a *Arbiter) Changes() <-chan Mode {
	return a.changes
}

// Run samples the signal until the context is cancelled. The first
// sample sets the initial mode immediately, without debouncing.
func (a *Arbiter) Run(ctx context.Context) error {
	level, err := a.signal.Level()
	if err != nil {
		return fmt.Errorf("failed to read control signal: %w", err)
	}
	a.transition(modeFor(level))

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		level, err := a.signal.Level()
		if err != nil {
			a.logger.Warn("Control signal read failed", slog.String("error", err.Error()))
			continue
		}

		next := modeFor(level)
		if next == a.Current() {
			continue
		}

		// Hold through the debounce window, then re-sample. Only a
		// second agreeing read commits the transition.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.debounce):
		}

		level, err = a.signal.Level()
		if err != nil {
			a.logger.Warn("Control signal read failed", slog.String("error", err.Error()))
			continue
		}
		if modeFor(level) != next {
			a.logger.Debug("Control signal bounce ignored", slog.String("mode", next.String()))
			continue
		}

		a.transition(next)
	}
}

func modeFor(level bool) Mode {
	if level {
		return ModeProcessing
	}
	return ModeReceiving
}

func (a *Arbiter) transition(next Mode) {
	a.mu.Lock()
	a.mode = next
	a.mu.Unlock()

	a.logger.Info("Mode transition", slog.String("mode", next.String()))
	if a.metrics != nil {
		a.metrics.RecordModeTransition(next.String())
	}

	select {
	case a.changes <- next:
	default:
		a.logger.Warn("Mode change dropped, consumer lagging",
			slog.String("mode", next.String()))
	}
}
