package vad

import (
	"fmt"
	"math"
)

// Detector classifies a PCM frame as speech or non-speech based on its
// normalized RMS energy. It holds no state across frames, so the same
// frame sequence always yields the same classifications.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector with the given normalized energy
// threshold in [0, 1].
func NewDetector(threshold float64) (*Detector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	return &Detector{threshold: threshold}, nil
}

// IsSpeech reports whether the frame's energy crosses the speech threshold.
// The frame is little-endian PCM-16 mono bytes.
func (d *Detector) IsSpeech(pcm []byte) bool {
	return d.Energy(pcm) >= d.threshold
}

// Energy computes the frame's RMS energy normalized to [0, 1], where 1 is
// a full-scale signal.
func (d *Detector) Energy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
		sum += s * s
	}

	rms := math.Sqrt(sum / float64(samples))
	return rms / 32768.0
}

// Threshold returns the configured speech threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}
