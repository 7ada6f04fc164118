package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssemblyAIConfig contains the AssemblyAI client configuration
type AssemblyAIConfig struct {
	Endpoint     string // API base URL, defaults to the public endpoint
	APIKey       string
	Timeout      time.Duration // per-request HTTP timeout
	PollInterval time.Duration // delay between transcript status polls
}

// AssemblyAIClient drives the upload-then-poll transcription flow: the
// audio is uploaded first, a transcript job is created for the returned
// URL, and the job status is polled until it completes or errors.
type AssemblyAIClient struct {
	config     AssemblyAIConfig
	httpClient *http.Client
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

type lemurRequest struct {
	Prompt    string `json:"prompt"`
	InputText string `json:"input_text"`
}

type lemurResponse struct {
	Response string `json:"response"`
}

const summaryPrompt = "Summarize the topics discussed in this day's voice " +
	"recordings, in the language of the transcript."

// NewAssemblyAIClient creates an AssemblyAI transcription client
func NewAssemblyAIClient(config AssemblyAIConfig) (*AssemblyAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Endpoint == "" {
		config.Endpoint = "https://api.assemblyai.com"
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &AssemblyAIClient{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Transcribe uploads the audio, creates a transcript job and polls it
// to completion. The poll loop has no overall deadline of its own;
// callers bound it through the context.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	audioURL, err := c.upload(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	id, err := c.createTranscript(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript for %s: %w", filename, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.config.PollInterval):
		}

		status, err := c.getTranscript(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to poll transcript %s: %w", id, err)
		}

		switch status.Status {
		case "completed":
			return status.Text, nil
		case "error":
			return "", fmt.Errorf("transcription of %s failed: %s", filename, status.Error)
		}
	}
}

// upload pushes raw audio bytes and returns the temporary audio URL
func (c *AssemblyAIClient) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var parsed uploadResponse
	if err := c.do(req, &parsed); err != nil {
		return "", err
	}
	if parsed.UploadURL == "" {
		return "", fmt.Errorf("upload response carried no URL")
	}
	return parsed.UploadURL, nil
}

// createTranscript starts a transcript job for an uploaded audio URL
func (c *AssemblyAIClient) createTranscript(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed transcriptResponse
	if err := c.do(req, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("transcript response carried no id")
	}
	return parsed.ID, nil
}

// Summarize condenses the daily transcript through the LeMUR task
// endpoint
func (c *AssemblyAIClient) Summarize(ctx context.Context, transcript string) (string, error) {
	body, err := json.Marshal(lemurRequest{
		Prompt:    summaryPrompt,
		InputText: transcript,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/lemur/v3/generate/task", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var parsed lemurResponse
	if err := c.do(req, &parsed); err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("summarization returned an empty response")
	}
	return parsed.Response, nil
}

// getTranscript fetches the current status of a transcript job
func (c *AssemblyAIClient) getTranscript(ctx context.Context, id string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.Endpoint+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.config.APIKey)

	var parsed transcriptResponse
	if err := c.do(req, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// do performs one request and decodes the JSON body into out
func (c *AssemblyAIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
