package segment

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/voxlink/vox-capture-service/internal/audio"
	"github.com/voxlink/vox-capture-service/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSinkSave(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	sink, err := NewSink(store, 16000, discardLogger())
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}

	seg := &Segment{
		PCM:            make([]byte, 32000), // one second at 16 kHz
		Start:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:       time.Second,
		SpeechDuration: time.Second,
	}

	path, err := sink.Save(seg)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !strings.Contains(path, "speech_20250601-120000_") {
		t.Errorf("Artifact name missing timestamp: %s", path)
	}
	if !strings.HasSuffix(path, ".wav") {
		t.Errorf("Artifact name missing .wav extension: %s", path)
	}

	names, err := store.List(".wav")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("Expected exactly one artifact, got %d", len(names))
	}

	data, err := store.Read(names[0])
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	pcm, rate, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("Artifact is not a valid WAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected 16 kHz artifact, got %d", rate)
	}
	if len(pcm) != len(seg.PCM) {
		t.Errorf("Expected %d PCM bytes, got %d", len(seg.PCM), len(pcm))
	}
}

func TestSinkNamesDoNotCollide(t *testing.T) {
	store, _ := storage.Open(t.TempDir())
	sink, _ := NewSink(store, 16000, discardLogger())

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seg := &Segment{PCM: make([]byte, 640), Start: start}
		if _, err := sink.Save(seg); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	names, _ := store.List(".wav")
	if len(names) != 3 {
		t.Errorf("Expected 3 artifacts for same-second segments, got %d", len(names))
	}
}

func TestSinkRejectsEmptySegment(t *testing.T) {
	store, _ := storage.Open(t.TempDir())
	sink, _ := NewSink(store, 16000, discardLogger())

	if _, err := sink.Save(&Segment{}); err == nil {
		t.Error("Expected error saving empty segment")
	}

	if _, err := sink.Save(nil); err == nil {
		t.Error("Expected error saving nil segment")
	}
}
