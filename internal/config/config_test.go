package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{
		Serial: SerialConfig{
			Device: "/dev/serial0",
		},
	}
	c.ApplyDefaults()
	return c
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid configuration",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name: "invalid sample rate",
			mutate: func(c *Config) {
				c.Audio.SampleRate = 4000
			},
			expectError: true,
		},
		{
			name: "invalid frame duration",
			mutate: func(c *Config) {
				c.Audio.FrameDuration = 25
			},
			expectError: true,
		},
		{
			name: "vad threshold above one",
			mutate: func(c *Config) {
				c.VAD.Threshold = 1.5
			},
			expectError: true,
		},
		{
			name: "negative silence threshold",
			mutate: func(c *Config) {
				c.Segmenter.SilenceThreshold = -1
			},
			expectError: true,
		},
		{
			name: "negative pre speech padding",
			mutate: func(c *Config) {
				c.Segmenter.PreSpeechPadding = -0.5
			},
			expectError: true,
		},
		{
			name: "empty serial device disables the link",
			mutate: func(c *Config) {
				c.Serial.Device = ""
			},
			expectError: false,
		},
		{
			name: "chunk size too small",
			mutate: func(c *Config) {
				c.Serial.ChunkSize = 16
			},
			expectError: true,
		},
		{
			name: "chunk size ignored while link disabled",
			mutate: func(c *Config) {
				c.Serial.Device = ""
				c.Serial.ChunkSize = 16
			},
			expectError: false,
		},
		{
			name: "unknown transcription backend",
			mutate: func(c *Config) {
				c.Transcription.Backend = "whispernet"
			},
			expectError: true,
		},
		{
			name: "email enabled without receiver",
			mutate: func(c *Config) {
				c.Email.Enabled = true
				c.Email.Sender = "a@example.com"
				c.Email.Receiver = ""
			},
			expectError: true,
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
audio:
  sample_rate: 16000
  frame_duration: 30
segmenter:
  silence_threshold: 30.0
  min_speech_duration: 5.0
  pre_speech_padding: 0.5
  post_speech_padding: 0.5
serial:
  device: /dev/serial0
  baud: 115200
control:
  pin: GPIO4
  debounce_time: 200
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}

	if cfg.Audio.FrameSamples() != 480 {
		t.Errorf("Expected 480 samples per frame, got %d", cfg.Audio.FrameSamples())
	}

	if cfg.Segmenter.GetSilenceThreshold() != 30*time.Second {
		t.Errorf("Expected 30s silence threshold, got %v", cfg.Segmenter.GetSilenceThreshold())
	}

	if cfg.Control.GetDebounceTime() != 200*time.Millisecond {
		t.Errorf("Expected 200ms debounce, got %v", cfg.Control.GetDebounceTime())
	}

	// Defaults should fill the sections the file omits.
	if cfg.Serial.ChunkSize != 1024 {
		t.Errorf("Expected default chunk size 1024, got %d", cfg.Serial.ChunkSize)
	}

	if cfg.Transcription.Backend != "assemblyai" {
		t.Errorf("Expected default backend assemblyai, got %s", cfg.Transcription.Backend)
	}
}

func TestLoadWithoutSerialSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recorder.yaml")

	// A capture-only deployment: no serial section at all.
	content := `
audio:
  sample_rate: 16000
  frame_duration: 30
storage:
  root: /var/lib/vox
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for a config without a serial link: %v", err)
	}
	if cfg.Serial.Device != "" {
		t.Errorf("Expected empty serial device, got %q", cfg.Serial.Device)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(path, []byte("audio: [not a mapping"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
