package seriallink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxlink/vox-capture-service/internal/protocol"
	"github.com/voxlink/vox-capture-service/internal/storage"
)

// fakeLink is an in-memory Link: Read drains a preloaded buffer and
// mimics the serial poll timeout by returning (0, nil) once empty.
type fakeLink struct {
	mu     sync.Mutex
	input  bytes.Buffer
	output bytes.Buffer
}

func (l *fakeLink) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.input.Len() == 0 {
		return 0, nil
	}
	return l.input.Read(p)
}

func (l *fakeLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.output.Write(p)
}

func (l *fakeLink) Close() error { return nil }

func (l *fakeLink) feed(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.input.Write(data)
}

func (l *fakeLink) responses() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.output.String()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func runReceiver(t *testing.T, link *fakeLink) (*storage.Store, context.CancelFunc, chan error) {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	receiver := NewReceiver(link, store, 256, testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- receiver.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	return store, cancel, done
}

func transferBytes(filename string, payload []byte) []byte {
	header := &protocol.Header{
		Filename:    filename,
		Size:        int64(len(payload)),
		Checksum:    protocol.Checksum(payload),
		HasChecksum: true,
	}
	return append([]byte(header.Encode()), payload...)
}

func TestReceiverAcceptsValidTransfer(t *testing.T) {
	payload := bytes.Repeat([]byte("vox"), 500)
	link := &fakeLink{}
	link.feed(transferBytes("clip.wav", payload))

	store, _, _ := runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseACK })

	stored, err := store.Read("clip.wav")
	if err != nil {
		t.Fatalf("Failed to read stored file: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Errorf("Stored payload differs: got %d bytes, want %d", len(stored), len(payload))
	}
}

func TestReceiverNacksChecksumMismatch(t *testing.T) {
	payload := []byte("some recorded audio")
	header := &protocol.Header{
		Filename:    "clip.wav",
		Size:        int64(len(payload)),
		Checksum:    protocol.Checksum(payload) + 1,
		HasChecksum: true,
	}

	link := &fakeLink{}
	link.feed(append([]byte(header.Encode()), payload...))

	store, _, _ := runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseNACK })

	// The partial (here: complete but unverified) file stays on disk.
	if _, err := store.Read("clip.wav"); err != nil {
		t.Errorf("Expected rejected payload to remain on disk: %v", err)
	}
}

func TestReceiverAcceptsTransferWithoutChecksum(t *testing.T) {
	payload := []byte("unchecked payload")
	header := &protocol.Header{Filename: "clip.wav", Size: int64(len(payload))}

	link := &fakeLink{}
	link.feed(append([]byte(header.Encode()), payload...))

	runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseACK })
}

func TestReceiverSkipsMalformedHeader(t *testing.T) {
	payload := []byte("good payload")
	link := &fakeLink{}
	link.feed([]byte("not a header\n"))
	link.feed(transferBytes("good.wav", payload))

	store, _, _ := runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseACK })

	if _, err := store.Read("good.wav"); err != nil {
		t.Errorf("Transfer after malformed header was not stored: %v", err)
	}
}

func TestReceiverDrainsOversizedHeader(t *testing.T) {
	payload := []byte("good payload")
	link := &fakeLink{}
	// The runaway line must be consumed whole; its tail must not be
	// parsed as the next header.
	link.feed(bytes.Repeat([]byte("x"), protocol.MaxHeaderLength*2))
	link.feed([]byte("\n"))
	link.feed(transferBytes("good.wav", payload))

	store, _, _ := runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseACK })

	stored, err := store.Read("good.wav")
	if err != nil {
		t.Fatalf("Transfer after oversized header was not stored: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Errorf("Stored payload differs: got %d bytes, want %d", len(stored), len(payload))
	}
}

func TestReceiverStripsPathFromFilename(t *testing.T) {
	payload := []byte("payload")
	link := &fakeLink{}
	link.feed(transferBytes("../../etc/evil.wav", payload))

	store, _, _ := runReceiver(t, link)

	waitFor(t, func() bool { return link.responses() == protocol.ResponseACK })

	if _, err := store.Read("evil.wav"); err != nil {
		t.Errorf("Expected file under its basename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "..", "..", "etc", "evil.wav")); err == nil {
		t.Error("File escaped the store directory")
	}
}

func TestReceiverHandlesSequentialTransfers(t *testing.T) {
	link := &fakeLink{}
	for i := 0; i < 3; i++ {
		link.feed(transferBytes(fmt.Sprintf("clip-%d.wav", i), []byte{byte(i), byte(i + 1)}))
	}

	store, _, _ := runReceiver(t, link)

	want := protocol.ResponseACK + protocol.ResponseACK + protocol.ResponseACK
	waitFor(t, func() bool { return link.responses() == want })

	names, err := store.List(".wav")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("Expected 3 stored files, got %d: %v", len(names), names)
	}
}

func TestReceiverStopsOnCancellation(t *testing.T) {
	link := &fakeLink{}
	_, cancel, done := runReceiver(t, link)

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
