package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxlink/vox-capture-service/internal/audio"
	"github.com/voxlink/vox-capture-service/internal/config"
	"github.com/voxlink/vox-capture-service/internal/metrics"
	"github.com/voxlink/vox-capture-service/internal/segment"
	"github.com/voxlink/vox-capture-service/internal/seriallink"
	"github.com/voxlink/vox-capture-service/internal/storage"
	"github.com/voxlink/vox-capture-service/internal/vad"
)

const (
	defaultConfigPath = "configs/recorder.yaml"
	serviceName       = "vox-recorder"
	serviceVersion    = "1.0.0"

	// flushTimeout bounds the final segment transfer during shutdown.
	flushTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_duration_ms", cfg.Audio.FrameDuration),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.Float64("silence_threshold", cfg.Segmenter.SilenceThreshold),
		slog.Float64("min_speech_duration", cfg.Segmenter.MinSpeechDuration),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("serial_device", cfg.Serial.Device),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, logger)
	}

	store, err := storage.NewSessionStore(cfg.Storage.Root, time.Now())
	if err != nil {
		logger.Error("Failed to create session store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session store created", slog.String("dir", store.Dir()))

	source, err := audio.NewFFmpegSource(ctx, audio.CaptureConfig{
		Command:     cfg.Capture.Command,
		InputFormat: cfg.Capture.InputFormat,
		InputDevice: cfg.Capture.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		FrameBytes:  cfg.Audio.FrameSamples() * 2,
	})
	if err != nil {
		logger.Error("Failed to start audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	detector, err := vad.NewDetector(cfg.VAD.Threshold)
	if err != nil {
		logger.Error("Failed to create VAD detector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine, err := segment.NewEngine(segment.Config{
		FrameDuration:     cfg.Audio.GetFrameDuration(),
		SilenceThreshold:  cfg.Segmenter.GetSilenceThreshold(),
		MinSpeechDuration: cfg.Segmenter.GetMinSpeechDuration(),
		PreSpeechPadding:  cfg.Segmenter.GetPreSpeechPadding(),
		PostSpeechPadding: cfg.Segmenter.GetPostSpeechPadding(),
	}, time.Now)
	if err != nil {
		logger.Error("Failed to create segmentation engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sink, err := segment.NewSink(store, cfg.Audio.SampleRate, logger)
	if err != nil {
		logger.Error("Failed to create segment sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var sender *seriallink.Sender
	if cfg.Serial.Device != "" {
		link, err := seriallink.Open(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.GetPollTimeout())
		if err != nil {
			logger.Error("Failed to open serial link", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer link.Close()
		sender = seriallink.NewSender(link, cfg.Serial.ChunkSize, logger)
		logger.Info("Serial sender ready", slog.String("device", cfg.Serial.Device))
	}

	queue := audio.NewQueue(cfg.Audio.QueueCapacity)

	// Capture goroutine: keep the source drained no matter how slow the
	// segmentation side is; drops are counted, never blocked on.
	captureDone := make(chan error, 1)
	go func() {
		defer close(captureDone)
		for {
			frame, err := source.Next(ctx)
			if err != nil {
				captureDone <- err
				return
			}
			if !queue.Push(frame) {
				appMetrics.RecordFrameDropped()
			}
			appMetrics.SetQueueSize(queue.Len())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Recorder started")

	var discarded uint64
	run := func() error {
		for {
			frame, err := queue.Pop(ctx)
			if err != nil {
				return err
			}

			isSpeech := detector.IsSpeech(frame.PCM)
			appMetrics.RecordFrameCaptured(isSpeech)

			if seg := engine.Process(frame.PCM, isSpeech); seg != nil {
				emitSegment(ctx, seg, sink, store, sender, appMetrics, logger)
			} else if d := engine.Stats().SegmentsDiscarded; d > discarded {
				discarded = d
				appMetrics.RecordSegmentDiscarded()
			}
		}
	}

	runDone := make(chan error, 1)
	go func() { runDone <- run() }()

	runStopped := false
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-captureDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Audio capture failed", slog.String("error", err.Error()))
		}
	case err := <-runDone:
		runStopped = true
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Segmentation loop failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Starting graceful shutdown...")
	cancel()
	if !runStopped {
		<-runDone
	}

	// An utterance in flight at shutdown is finalized, not lost. The
	// transfer gets a bounded window so a silent relay cannot wedge
	// the shutdown.
	if seg := engine.Flush(); seg != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
		emitSegment(flushCtx, seg, sink, store, sender, appMetrics, logger)
		flushCancel()
	}

	if err := source.Close(); err != nil {
		logger.Error("Error closing audio source", slog.String("error", err.Error()))
	}

	stats := engine.Stats()
	logger.Info("Final recorder statistics",
		slog.Uint64("frames_processed", stats.FramesProcessed),
		slog.Uint64("segments_emitted", stats.SegmentsEmitted),
		slog.Uint64("segments_discarded", stats.SegmentsDiscarded),
		slog.Uint64("frames_dropped", queue.Dropped()),
	)

	logger.Info("Service stopped")
}

// emitSegment saves one finalized segment and, when a serial sender is
// configured, pushes the stored WAV to the relay
func emitSegment(ctx context.Context, seg *segment.Segment, sink *segment.Sink, store *storage.Store,
	sender *seriallink.Sender, m *metrics.Metrics, logger *slog.Logger) {
	path, err := sink.Save(seg)
	if err != nil {
		logger.Error("Failed to save segment", slog.String("error", err.Error()))
		return
	}
	m.RecordSegmentEmitted(seg.Duration.Seconds())

	if sender == nil {
		return
	}

	// The wire carries the bare artifact name; the relay keeps only
	// basenames anyway.
	name := filepath.Base(path)
	wav, err := store.Read(name)
	if err != nil {
		logger.Error("Failed to read stored segment for transfer",
			slog.String("filename", name),
			slog.String("error", err.Error()))
		return
	}
	if err := sender.Send(ctx, name, wav); err != nil {
		logger.Error("Serial transfer failed, keeping local copy",
			slog.String("filename", name),
			slog.String("error", err.Error()))
	}
}

// serveMetrics exposes the Prometheus endpoint
func serveMetrics(address string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Metrics endpoint listening", slog.String("address", address))
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Error("Metrics endpoint failed", slog.String("error", err.Error()))
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
