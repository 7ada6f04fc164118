package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig contains the OpenAI client configuration
type OpenAIConfig struct {
	BaseURL string // optional override, e.g. for a compatible proxy
	APIKey  string
	Model   string        // chat model for summaries, e.g. gpt-4o-mini
	Timeout time.Duration // per-request HTTP timeout
}

// OpenAIClient transcribes recordings through the audio transcription
// endpoint and summarizes daily transcripts through chat completions
type OpenAIClient struct {
	client oai.Client
	model  string
}

const summarySystemPrompt = "You summarize transcripts of voice recordings " +
	"captured over one day. Produce a concise summary of the topics " +
	"discussed, in the language of the transcript."

// NewOpenAIClient creates a client for transcription and summarization
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: config.Timeout,
		}))
	}

	return &OpenAIClient{
		client: oai.NewClient(reqOpts...),
		model:  config.Model,
	}, nil
}

// Transcribe sends the WAV audio to the transcription endpoint
func (c *OpenAIClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), filename, "audio/wav"),
		Model: oai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("transcription of %s failed: %w", filename, err)
	}
	return resp.Text, nil
}

// Summarize condenses the concatenated daily transcript
func (c *OpenAIClient) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(summarySystemPrompt),
			oai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarization returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
