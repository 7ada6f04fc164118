package transcribe

import (
	"context"
	"fmt"

	"github.com/voxlink/vox-capture-service/internal/config"
)

// Transcriber converts one audio recording to text
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Summarizer condenses a day's worth of transcripts into a short
// summary for the report email
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// New builds the configured transcription backend and its summarizer
func New(cfg config.TranscriptionConfig) (Transcriber, Summarizer, error) {
	switch cfg.Backend {
	case "assemblyai":
		client, err := NewAssemblyAIClient(AssemblyAIConfig{
			Endpoint:     cfg.Endpoint,
			APIKey:       cfg.APIKey,
			Timeout:      cfg.GetTimeout(),
			PollInterval: cfg.GetPollInterval(),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case "openai":
		client, err := NewOpenAIClient(OpenAIConfig{
			BaseURL: cfg.Endpoint,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.GetTimeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
