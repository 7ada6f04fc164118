// Package pipeline connects the relay's moving parts: the control
// arbiter picks the mode, the serial receiver runs while the line says
// RECEIVING, and the report processor runs on each switch to
// PROCESSING.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/voxlink/vox-capture-service/internal/control"
)

// Task is one cancellable unit of relay work
type Task interface {
	Run(ctx context.Context) error
}

// Relay drives receiving and processing off the arbiter's transitions.
// Receiving runs continuously until the mode changes; processing runs
// once per transition into PROCESSING, and its failures are logged
// rather than fatal so a bad day never wedges the relay.
type Relay struct {
	arbiter   *control.Arbiter
	receiver  Task
	processor Task
	logger    *slog.Logger
}

// NewRelay creates a relay over the given collaborators
func NewRelay(arbiter *control.Arbiter, receiver, processor Task, logger *slog.Logger) *Relay {
	return &Relay{
		arbiter:   arbiter,
		receiver:  receiver,
		processor: processor,
		logger:    logger,
	}
}

// Run reacts to mode transitions until the context is cancelled
func (r *Relay) Run(ctx context.Context) error {
	var cancelReceiver context.CancelFunc
	var receiverDone chan error

	stopReceiver := func() {
		if cancelReceiver == nil {
			return
		}
		cancelReceiver()
		if err := <-receiverDone; err != nil {
			r.logger.Error("Receiver stopped with error", slog.String("error", err.Error()))
		}
		cancelReceiver = nil
	}
	defer stopReceiver()

	for {
		select {
		case <-ctx.Done():
			return nil
		case mode := <-r.arbiter.Changes():
			switch mode {
			case control.ModeReceiving:
				if cancelReceiver != nil {
					continue
				}
				var receiverCtx context.Context
				receiverCtx, cancelReceiver = context.WithCancel(ctx)
				receiverDone = make(chan error, 1)
				receiver := r.receiver
				go func() { receiverDone <- receiver.Run(receiverCtx) }()

			case control.ModeProcessing:
				stopReceiver()
				if err := r.processor.Run(ctx); err != nil {
					r.logger.Error("Processing pass failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}
