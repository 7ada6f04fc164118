package audio

import (
	"bytes"
	"math"
	"testing"
)

// sinePCM generates little-endian PCM-16 bytes of a sine tone
func sinePCM(samples int, freq float64, sampleRate int, amplitude float64) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return pcm
}

func TestEncodeWAV(t *testing.T) {
	pcm := sinePCM(16000, 440, 16000, 0.5)

	data, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(pcm) {
		t.Errorf("Expected %d bytes, got %d", 44+len(pcm), len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Error("Missing RIFF marker")
	}

	if string(data[8:12]) != "WAVE" {
		t.Error("Missing WAVE marker")
	}

	if string(data[36:40]) != "data" {
		t.Error("Missing data marker")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
	}{
		{name: "empty data", pcm: nil, sampleRate: 16000},
		{name: "odd length", pcm: []byte{1, 2, 3}, sampleRate: 16000},
		{name: "zero sample rate", pcm: []byte{1, 2}, sampleRate: 0},
		{name: "negative sample rate", pcm: []byte{1, 2}, sampleRate: -8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.pcm, tt.sampleRate); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestWAVRoundTrip(t *testing.T) {
	original := sinePCM(4800, 200, 16000, 0.8)

	encoded, err := EncodeWAV(original, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if !bytes.Equal(decoded, original) {
		t.Error("Decoded PCM differs from original")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "too short", data: []byte("RIFF")},
		{name: "not riff", data: bytes.Repeat([]byte{0}, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestWAVDuration(t *testing.T) {
	// 16000 samples at 16 kHz is exactly one second
	pcm := sinePCM(16000, 440, 16000, 0.5)
	data, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	duration, err := WAVDuration(data)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}

	if math.Abs(duration-1.0) > 0.001 {
		t.Errorf("Expected 1.0s, got %f", duration)
	}
}
