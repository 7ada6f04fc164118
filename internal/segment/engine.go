package segment

import (
	"fmt"
	"time"
)

// State represents the current phase of the segmentation state machine
type State int

const (
	StateIdle State = iota
	StateRecording
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Segment is a finalized utterance ready for persistence
type Segment struct {
	PCM            []byte        // concatenated frame data, pre-roll first
	Start          time.Time     // when the first retained frame was processed
	Duration       time.Duration // total length including padding
	SpeechDuration time.Duration // speech frames only
}

// Config contains the segmentation parameters. All values are durations;
// the engine converts paddings to whole frame counts.
type Config struct {
	FrameDuration     time.Duration
	SilenceThreshold  time.Duration // silence ending an utterance
	MinSpeechDuration time.Duration // speech required to keep a segment
	PreSpeechPadding  time.Duration // audio retained before speech onset
	PostSpeechPadding time.Duration // audio appended after speech end
}

// EngineStats counts segmentation outcomes. A discarded segment is an
// expected result of the gating policy, not an error, so it is tracked
// separately from emitted segments.
type EngineStats struct {
	FramesProcessed   uint64
	SegmentsEmitted   uint64
	SegmentsDiscarded uint64
}

// Engine consumes one classified frame at a time and lazily emits
// finalized speech segments. It is not safe for concurrent use; the
// capture pipeline feeds it from a single goroutine.
type Engine struct {
	cfg   Config
	clock func() time.Time

	state        State
	preroll      [][]byte // ring of the most recent non-speech frames
	prerollMax   int
	active       [][]byte // frames of the in-progress utterance
	speechFrames int
	silenceStart time.Time // zero while speech is ongoing
	segmentStart time.Time

	stats EngineStats
}

// NewEngine creates a segmentation engine. clock is injected so tests can
// drive silence timing deterministically; pass time.Now in production.
func NewEngine(cfg Config, clock func() time.Time) (*Engine, error) {
	if cfg.FrameDuration <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %v", cfg.FrameDuration)
	}
	if cfg.SilenceThreshold <= 0 {
		return nil, fmt.Errorf("silence threshold must be positive, got %v", cfg.SilenceThreshold)
	}
	if cfg.MinSpeechDuration <= 0 {
		return nil, fmt.Errorf("minimum speech duration must be positive, got %v", cfg.MinSpeechDuration)
	}
	if cfg.PreSpeechPadding < 0 || cfg.PostSpeechPadding < 0 {
		return nil, fmt.Errorf("paddings cannot be negative")
	}
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		cfg:        cfg,
		clock:      clock,
		state:      StateIdle,
		prerollMax: int(cfg.PreSpeechPadding / cfg.FrameDuration),
	}, nil
}

// Process consumes one classified frame and returns a finalized segment,
// or nil. A nil result covers three cases: still idle, still recording,
// or an utterance that was discarded by the gating policy (visible via
// Stats).
func (e *Engine) Process(pcm []byte, isSpeech bool) *Segment {
	e.stats.FramesProcessed++

	switch e.state {
	case StateIdle:
		if !isSpeech {
			e.pushPreroll(pcm)
			return nil
		}

		// Speech onset: seed the utterance with the pre-roll so the
		// start of the first word is not clipped.
		e.state = StateRecording
		e.segmentStart = e.clock()
		e.active = make([][]byte, 0, len(e.preroll)+64)
		e.active = append(e.active, e.preroll...)
		e.preroll = nil
		e.speechFrames = 1
		e.silenceStart = time.Time{}
		e.active = append(e.active, pcm)
		return nil

	case StateRecording:
		e.active = append(e.active, pcm)

		if isSpeech {
			e.speechFrames++
			e.silenceStart = time.Time{}
			return nil
		}

		now := e.clock()
		if e.silenceStart.IsZero() {
			e.silenceStart = now
			return nil
		}

		if now.Sub(e.silenceStart) >= e.cfg.SilenceThreshold {
			return e.finalize(pcm)
		}
		return nil
	}

	return nil
}

// Flush forces an immediate finalize-or-discard of any in-progress
// utterance, equivalent to the silence threshold elapsing right now. It
// is called on external stop so a long recording is not silently lost.
func (e *Engine) Flush() *Segment {
	if e.state != StateRecording || len(e.active) == 0 {
		return nil
	}

	last := e.active[len(e.active)-1]
	return e.finalize(last)
}

// finalize appends the post-speech padding, applies the gating policy and
// resets to idle. filler is the frame replayed as padding.
func (e *Engine) finalize(filler []byte) *Segment {
	postFrames := int(e.cfg.PostSpeechPadding / e.cfg.FrameDuration)
	for i := 0; i < postFrames; i++ {
		e.active = append(e.active, filler)
	}

	speechDuration := time.Duration(e.speechFrames) * e.cfg.FrameDuration
	totalFrames := len(e.active)

	var seg *Segment
	if speechDuration >= e.cfg.MinSpeechDuration {
		pcm := make([]byte, 0, totalFrames*len(filler))
		for _, frame := range e.active {
			pcm = append(pcm, frame...)
		}

		seg = &Segment{
			PCM:            pcm,
			Start:          e.segmentStart,
			Duration:       time.Duration(totalFrames) * e.cfg.FrameDuration,
			SpeechDuration: speechDuration,
		}
		e.stats.SegmentsEmitted++
	} else {
		e.stats.SegmentsDiscarded++
	}

	e.state = StateIdle
	e.active = nil
	e.speechFrames = 0
	e.silenceStart = time.Time{}
	e.segmentStart = time.Time{}

	return seg
}

// pushPreroll appends a frame to the pre-roll ring, evicting the oldest
// once the configured padding is full.
func (e *Engine) pushPreroll(pcm []byte) {
	if e.prerollMax == 0 {
		return
	}
	e.preroll = append(e.preroll, pcm)
	if len(e.preroll) > e.prerollMax {
		e.preroll = e.preroll[1:]
	}
}

// State returns the engine's current state
func (e *Engine) State() State {
	return e.state
}

// Stats returns the segmentation counters
func (e *Engine) Stats() EngineStats {
	return e.stats
}
