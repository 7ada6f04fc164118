package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpegSource captures microphone PCM audio by running ffmpeg with a raw
// s16le output pipe and slicing its stdout into fixed-duration frames.
type FFmpegSource struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *bytes.Buffer
	frameBytes int
	cancel     context.CancelFunc
}

// CaptureConfig describes the audio input ffmpeg should open
type CaptureConfig struct {
	Command     string
	InputFormat string // e.g. alsa, pulse
	InputDevice string
	SampleRate  int
	FrameBytes  int // bytes per frame (samples * 2)
}

// NewFFmpegSource starts the capture process and returns a FrameSource
// over its PCM output.
func NewFFmpegSource(ctx context.Context, cfg CaptureConfig) (*FFmpegSource, error) {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameBytes <= 0 || cfg.FrameBytes%2 != 0 {
		return nil, fmt.Errorf("frame bytes must be a positive even number, got %d", cfg.FrameBytes)
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	runCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(runCtx, cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create %s stdout pipe: %w", cfg.Command, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	return &FFmpegSource{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     &stderr,
		frameBytes: cfg.FrameBytes,
		cancel:     cancel,
	}, nil
}

// Next reads exactly one frame from the capture pipe. A dead capture
// process surfaces as an error to the owning process; this is the one
// failure the pipeline does not absorb.
func (s *FFmpegSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	pcm := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.stdout, pcm); err != nil {
		detail := strings.TrimSpace(s.stderr.String())
		if detail != "" {
			return Frame{}, fmt.Errorf("audio capture failed: %w: %s", err, detail)
		}
		return Frame{}, fmt.Errorf("audio capture failed: %w", err)
	}

	return Frame{PCM: pcm, Captured: time.Now()}, nil
}

// Close stops the capture process and releases the pipe
func (s *FFmpegSource) Close() error {
	s.cancel()
	_ = s.stdout.Close()
	if err := s.cmd.Wait(); err != nil {
		// Killing ffmpeg through the context reports an exit error; that
		// is the expected shutdown path, not a failure.
		if strings.Contains(err.Error(), "signal: killed") || strings.Contains(err.Error(), "context canceled") {
			return nil
		}
		return fmt.Errorf("capture process exited: %w", err)
	}
	return nil
}
