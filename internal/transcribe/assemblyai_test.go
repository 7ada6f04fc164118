package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxlink/vox-capture-service/internal/config"
)

// fakeAssemblyAI serves the upload/create/poll flow in memory
func fakeAssemblyAI(t *testing.T, pollsUntilDone int32, finalStatus, text, apiErr string) *httptest.Server {
	t.Helper()
	var polls int32

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			http.Error(w, "empty upload", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/upload-1"})
	})

	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["audio_url"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
	})

	mux.HandleFunc("GET /v2/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < pollsUntilDone {
			json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id": "tr-1", "status": finalStatus, "text": text, "error": apiErr,
		})
	})

	mux.HandleFunc("POST /lemur/v3/generate/task", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["input_text"] == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "a short summary"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, endpoint string) *AssemblyAIClient {
	t.Helper()
	client, err := NewAssemblyAIClient(AssemblyAIConfig{
		Endpoint:     endpoint,
		APIKey:       "test-key",
		Timeout:      5 * time.Second,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewAssemblyAIClient failed: %v", err)
	}
	return client
}

func TestAssemblyAITranscribe(t *testing.T) {
	server := fakeAssemblyAI(t, 3, "completed", "hello from the recording", "")
	client := newTestClient(t, server.URL)

	text, err := client.Transcribe(context.Background(), "clip.wav", []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello from the recording" {
		t.Errorf("Unexpected transcript: %q", text)
	}
}

func TestAssemblyAITranscriptionError(t *testing.T) {
	server := fakeAssemblyAI(t, 1, "error", "", "audio too noisy")
	client := newTestClient(t, server.URL)

	_, err := client.Transcribe(context.Background(), "clip.wav", []byte("RIFFdata"))
	if err == nil {
		t.Fatal("Expected error for failed transcript")
	}
	if !strings.Contains(err.Error(), "audio too noisy") {
		t.Errorf("Error does not carry the API reason: %v", err)
	}
}

func TestAssemblyAISummarize(t *testing.T) {
	server := fakeAssemblyAI(t, 1, "completed", "", "")
	client := newTestClient(t, server.URL)

	summary, err := client.Summarize(context.Background(), "[10:00] hello\n\n[11:00] world")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "a short summary" {
		t.Errorf("Unexpected summary: %q", summary)
	}
}

func TestAssemblyAIServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Transcribe(context.Background(), "clip.wav", []byte("x")); err == nil {
		t.Error("Expected error for HTTP 500")
	}
}

func TestAssemblyAIPollCancellation(t *testing.T) {
	// The transcript never completes; cancellation must end the poll.
	server := fakeAssemblyAI(t, 1<<30, "completed", "", "")
	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, "clip.wav", []byte("x"))
	if err == nil {
		t.Fatal("Expected error after context deadline")
	}
}

func TestNewAssemblyAIClientRequiresKey(t *testing.T) {
	if _, err := NewAssemblyAIClient(AssemblyAIConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestNewFactorySelectsBackend(t *testing.T) {
	tests := []struct {
		name          string
		backend       string
		wantSummarize bool
		expectError   bool
	}{
		{name: "assemblyai", backend: "assemblyai", wantSummarize: true},
		{name: "openai", backend: "openai", wantSummarize: true},
		{name: "unknown backend", backend: "deepgram", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.TranscriptionConfig{
				Backend:      tt.backend,
				APIKey:       "test-key",
				Timeout:      5,
				PollInterval: 1,
			}

			transcriber, summarizer, err := New(cfg)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error for unknown backend")
				}
				return
			}

			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if transcriber == nil {
				t.Fatal("Expected a transcriber")
			}
			if got := summarizer != nil; got != tt.wantSummarize {
				t.Errorf("Summarizer presence = %v, want %v", got, tt.wantSummarize)
			}
		})
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}
