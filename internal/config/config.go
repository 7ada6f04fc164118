package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration shared by the
// recorder and relay binaries. Each binary validates only the sections
// it actually uses.
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Capture       CaptureConfig       `yaml:"capture"`
	VAD           VADConfig           `yaml:"vad"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Storage       StorageConfig       `yaml:"storage"`
	Serial        SerialConfig        `yaml:"serial"`
	Control       ControlConfig       `yaml:"control"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Email         EmailConfig         `yaml:"email"`
	Report        ReportConfig        `yaml:"report"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains the PCM stream parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`    // Hz
	FrameDuration int `yaml:"frame_duration"` // milliseconds per frame
	QueueCapacity int `yaml:"queue_capacity"` // frames buffered between capture and segmentation
}

// CaptureConfig contains the live audio input configuration
type CaptureConfig struct {
	Command     string `yaml:"command"`      // capture binary, defaults to ffmpeg
	InputFormat string `yaml:"input_format"` // e.g. alsa, pulse
	InputDevice string `yaml:"input_device"`
}

// VADConfig contains Voice Activity Detection configuration
type VADConfig struct {
	Threshold float64 `yaml:"threshold"` // normalized RMS energy, 0..1
}

// SegmenterConfig contains utterance segmentation parameters
type SegmenterConfig struct {
	SilenceThreshold  float64 `yaml:"silence_threshold"`   // seconds of silence ending an utterance
	MinSpeechDuration float64 `yaml:"min_speech_duration"` // seconds of speech required to keep a segment
	PreSpeechPadding  float64 `yaml:"pre_speech_padding"`  // seconds retained before speech onset
	PostSpeechPadding float64 `yaml:"post_speech_padding"` // seconds appended after speech end
}

// StorageConfig contains the recording storage configuration
type StorageConfig struct {
	Root string `yaml:"root"` // base directory; one session directory is created per run
}

// SerialConfig contains the point-to-point serial link configuration
type SerialConfig struct {
	Device      string `yaml:"device"`       // e.g. /dev/serial0
	Baud        int    `yaml:"baud"`         // e.g. 115200
	ChunkSize   int    `yaml:"chunk_size"`   // payload read size in bytes
	PollTimeout int    `yaml:"poll_timeout"` // milliseconds per blocking read
}

// ControlConfig contains the external mode signal configuration
type ControlConfig struct {
	Pin          string `yaml:"pin"`           // GPIO line name, e.g. GPIO4
	DebounceTime int    `yaml:"debounce_time"` // milliseconds the signal must hold before a transition
	PollInterval int    `yaml:"poll_interval"` // milliseconds between signal samples
}

// TranscriptionConfig contains transcription collaborator configuration
type TranscriptionConfig struct {
	Backend      string `yaml:"backend"` // "assemblyai" or "openai"
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Timeout      int    `yaml:"timeout"`       // seconds per request
	PollInterval int    `yaml:"poll_interval"` // seconds between transcript status polls
}

// EmailConfig contains summary delivery configuration
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`
	Receiver string `yaml:"receiver"`
}

// ReportConfig contains daily processing configuration
type ReportConfig struct {
	MinAudioDuration float64 `yaml:"min_audio_duration"` // seconds; shorter artifacts are purged unprocessed
	PurgeAfterSend   bool    `yaml:"purge_after_send"`
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ApplyDefaults fills zero values with working defaults so a minimal
// config file stays usable.
func (c *Config) ApplyDefaults() {
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameDuration == 0 {
		c.Audio.FrameDuration = 30
	}
	if c.Audio.QueueCapacity == 0 {
		c.Audio.QueueCapacity = 64
	}
	if c.Capture.Command == "" {
		c.Capture.Command = "ffmpeg"
	}
	if c.Capture.InputFormat == "" {
		c.Capture.InputFormat = "alsa"
	}
	if c.Capture.InputDevice == "" {
		c.Capture.InputDevice = "default"
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.05
	}
	if c.Segmenter.SilenceThreshold == 0 {
		c.Segmenter.SilenceThreshold = 30.0
	}
	if c.Segmenter.MinSpeechDuration == 0 {
		c.Segmenter.MinSpeechDuration = 5.0
	}
	if c.Segmenter.PreSpeechPadding == 0 {
		c.Segmenter.PreSpeechPadding = 0.5
	}
	if c.Segmenter.PostSpeechPadding == 0 {
		c.Segmenter.PostSpeechPadding = 0.5
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "recordings"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Serial.ChunkSize == 0 {
		c.Serial.ChunkSize = 1024
	}
	if c.Serial.PollTimeout == 0 {
		c.Serial.PollTimeout = 500
	}
	if c.Control.Pin == "" {
		c.Control.Pin = "GPIO4"
	}
	if c.Control.DebounceTime == 0 {
		c.Control.DebounceTime = 200
	}
	if c.Control.PollInterval == 0 {
		c.Control.PollInterval = 500
	}
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = "assemblyai"
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30
	}
	if c.Transcription.PollInterval == 0 {
		c.Transcription.PollInterval = 3
	}
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = "smtp.gmail.com"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 465
	}
	if c.Report.MinAudioDuration == 0 {
		c.Report.MinAudioDuration = 10.0
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}

	if err := c.Control.Validate(); err != nil {
		return fmt.Errorf("control config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("email config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.FrameDuration != 10 && a.FrameDuration != 20 && a.FrameDuration != 30 {
		return fmt.Errorf("frame_duration must be 10, 20 or 30 ms, got %d", a.FrameDuration)
	}

	if a.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", a.QueueCapacity)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	return nil
}

// Validate validates segmenter configuration
func (s *SegmenterConfig) Validate() error {
	if s.SilenceThreshold <= 0 {
		return fmt.Errorf("silence_threshold must be positive, got %f", s.SilenceThreshold)
	}

	if s.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", s.MinSpeechDuration)
	}

	if s.PreSpeechPadding < 0 {
		return fmt.Errorf("pre_speech_padding cannot be negative, got %f", s.PreSpeechPadding)
	}

	if s.PostSpeechPadding < 0 {
		return fmt.Errorf("post_speech_padding cannot be negative, got %f", s.PostSpeechPadding)
	}

	return nil
}

// Validate validates serial link configuration. An empty device means
// the serial link is disabled (the recorder then keeps recordings
// local); the relay, which cannot work without the link, enforces a
// device at startup.
func (s *SerialConfig) Validate() error {
	if s.Device == "" {
		return nil
	}

	if s.Baud < 9600 {
		return fmt.Errorf("baud must be at least 9600, got %d", s.Baud)
	}

	if s.ChunkSize < 64 || s.ChunkSize > 65536 {
		return fmt.Errorf("chunk_size must be between 64 and 65536 bytes, got %d", s.ChunkSize)
	}

	if s.PollTimeout < 10 {
		return fmt.Errorf("poll_timeout must be at least 10 ms, got %d", s.PollTimeout)
	}

	return nil
}

// Validate validates control signal configuration
func (c *ControlConfig) Validate() error {
	if c.Pin == "" {
		return fmt.Errorf("pin cannot be empty")
	}

	if c.DebounceTime < 1 {
		return fmt.Errorf("debounce_time must be at least 1 ms, got %d", c.DebounceTime)
	}

	if c.PollInterval < 1 {
		return fmt.Errorf("poll_interval must be at least 1 ms, got %d", c.PollInterval)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	validBackends := map[string]bool{"assemblyai": true, "openai": true}
	if !validBackends[t.Backend] {
		return fmt.Errorf("backend must be 'assemblyai' or 'openai', got '%s'", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.PollInterval < 1 {
		return fmt.Errorf("poll_interval must be at least 1 second, got %d", t.PollInterval)
	}

	return nil
}

// Validate validates email configuration
func (e *EmailConfig) Validate() error {
	if !e.Enabled {
		return nil
	}

	if e.SMTPHost == "" {
		return fmt.Errorf("smtp_host cannot be empty when email is enabled")
	}

	if e.SMTPPort < 1 || e.SMTPPort > 65535 {
		return fmt.Errorf("smtp_port must be between 1 and 65535, got %d", e.SMTPPort)
	}

	if e.Sender == "" || e.Receiver == "" {
		return fmt.Errorf("sender and receiver cannot be empty when email is enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetFrameDuration returns the frame duration as a time.Duration
func (a *AudioConfig) GetFrameDuration() time.Duration {
	return time.Duration(a.FrameDuration) * time.Millisecond
}

// FrameSamples returns the number of PCM samples per frame
func (a *AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameDuration / 1000
}

// GetSilenceThreshold returns the silence threshold as a time.Duration
func (s *SegmenterConfig) GetSilenceThreshold() time.Duration {
	return time.Duration(s.SilenceThreshold * float64(time.Second))
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (s *SegmenterConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(s.MinSpeechDuration * float64(time.Second))
}

// GetPreSpeechPadding returns the pre-speech padding as a time.Duration
func (s *SegmenterConfig) GetPreSpeechPadding() time.Duration {
	return time.Duration(s.PreSpeechPadding * float64(time.Second))
}

// GetPostSpeechPadding returns the post-speech padding as a time.Duration
func (s *SegmenterConfig) GetPostSpeechPadding() time.Duration {
	return time.Duration(s.PostSpeechPadding * float64(time.Second))
}

// GetPollTimeout returns the serial read poll timeout as a time.Duration
func (s *SerialConfig) GetPollTimeout() time.Duration {
	return time.Duration(s.PollTimeout) * time.Millisecond
}

// GetDebounceTime returns the control debounce delay as a time.Duration
func (c *ControlConfig) GetDebounceTime() time.Duration {
	return time.Duration(c.DebounceTime) * time.Millisecond
}

// GetPollInterval returns the control poll interval as a time.Duration
func (c *ControlConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// GetTimeout returns the transcription request timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeout() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetPollInterval returns the transcript status poll interval as a time.Duration
func (t *TranscriptionConfig) GetPollInterval() time.Duration {
	return time.Duration(t.PollInterval) * time.Second
}

// GetMinAudioDuration returns the minimum processable artifact duration
func (r *ReportConfig) GetMinAudioDuration() time.Duration {
	return time.Duration(r.MinAudioDuration * float64(time.Second))
}
