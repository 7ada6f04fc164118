package audio

import (
	"context"
	"sync/atomic"
	"time"
)

// Frame is a fixed-duration block of little-endian PCM-16 mono samples.
// Frames are immutable once produced.
type Frame struct {
	PCM      []byte
	Captured time.Time
}

// FrameSource produces fixed-duration PCM frames from a live audio input.
// Next blocks up to roughly one frame period for the next frame.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Queue is the bounded handoff between the capture boundary and the
// segmentation engine. The capture side must never block on a slow
// consumer, so a full queue drops the incoming frame and counts it.
type Queue struct {
	frames  chan Frame
	dropped atomic.Uint64
}

// NewQueue creates a frame queue holding up to capacity frames
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		frames: make(chan Frame, capacity),
	}
}

// Push offers a frame to the queue without blocking. It reports whether
// the frame was accepted; a rejected frame is counted as dropped.
func (q *Queue) Push(f Frame) bool {
	select {
	case q.frames <- f:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop returns the next frame, blocking until one is available or the
// context is cancelled.
func (q *Queue) Pop(ctx context.Context) (Frame, error) {
	select {
	case f := <-q.frames:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Dropped returns the number of frames rejected because the queue was full
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of frames currently buffered
func (q *Queue) Len() int {
	return len(q.frames)
}
