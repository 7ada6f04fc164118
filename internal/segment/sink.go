package segment

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voxlink/vox-capture-service/internal/audio"
	"github.com/voxlink/vox-capture-service/internal/storage"
)

// Sink persists finalized segments as mono 16-bit WAV artifacts in the
// session store. One file per accepted segment; names combine the segment
// timestamp with a short random suffix so two segments finalized within
// the same second cannot collide.
type Sink struct {
	store      *storage.Store
	sampleRate int
	logger     *slog.Logger
}

// NewSink creates a sink writing into the given session store
func NewSink(store *storage.Store, sampleRate int, logger *slog.Logger) (*Sink, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &Sink{
		store:      store,
		sampleRate: sampleRate,
		logger:     logger,
	}, nil
}

// Save encodes the segment as WAV and writes it atomically, returning the
// artifact path.
func (s *Sink) Save(seg *Segment) (string, error) {
	if seg == nil || len(seg.PCM) == 0 {
		return "", fmt.Errorf("cannot save empty segment")
	}

	data, err := audio.EncodeWAV(seg.PCM, s.sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment: %w", err)
	}

	name := fmt.Sprintf("speech_%s_%s.wav",
		seg.Start.Format("20060102-150405"),
		uuid.NewString()[:8],
	)

	path, err := s.store.Put(name, data)
	if err != nil {
		return "", fmt.Errorf("failed to persist segment: %w", err)
	}

	s.logger.Info("Segment saved",
		slog.String("path", path),
		slog.Float64("duration", seg.Duration.Seconds()),
		slog.Float64("speech_duration", seg.SpeechDuration.Seconds()),
	)

	return path, nil
}
