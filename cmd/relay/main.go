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
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/voxlink/vox-capture-service/internal/config"
	"github.com/voxlink/vox-capture-service/internal/control"
	"github.com/voxlink/vox-capture-service/internal/metrics"
	"github.com/voxlink/vox-capture-service/internal/pipeline"
	"github.com/voxlink/vox-capture-service/internal/report"
	"github.com/voxlink/vox-capture-service/internal/seriallink"
	"github.com/voxlink/vox-capture-service/internal/storage"
	"github.com/voxlink/vox-capture-service/internal/transcribe"
)

const (
	defaultConfigPath = "configs/relay.yaml"
	serviceName       = "vox-relay"
	serviceVersion    = "1.0.0"
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

	// The recorder can run without a serial link; the relay cannot.
	if cfg.Serial.Device == "" {
		logger.Error("Serial device is required", slog.String("hint", "set serial.device in the configuration"))
		os.Exit(1)
	}

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("serial_device", cfg.Serial.Device),
		slog.Int("serial_baud", cfg.Serial.Baud),
		slog.String("control_pin", cfg.Control.Pin),
		slog.String("storage_root", cfg.Storage.Root),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.Bool("email_enabled", cfg.Email.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()

	if _, err := host.Init(); err != nil {
		logger.Error("Failed to initialize GPIO host", slog.String("error", err.Error()))
		os.Exit(1)
	}
	signalSource, err := control.NewGPIOSignal(cfg.Control.Pin)
	if err != nil {
		logger.Error("Failed to open control pin", slog.String("error", err.Error()))
		os.Exit(1)
	}
	arbiter := control.NewArbiter(signalSource,
		cfg.Control.GetDebounceTime(), cfg.Control.GetPollInterval(), logger, appMetrics)

	link, err := seriallink.Open(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.GetPollTimeout())
	if err != nil {
		logger.Error("Failed to open serial link", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer link.Close()

	store, err := storage.Open(cfg.Storage.Root)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	receiver := seriallink.NewReceiver(link, store, cfg.Serial.ChunkSize, logger, appMetrics)

	transcriber, summarizer, err := transcribe.New(cfg.Transcription)
	if err != nil {
		logger.Error("Failed to create transcription backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mailer, err := report.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Error("Failed to create mailer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if mailer == nil {
		logger.Warn("Email delivery disabled, reports stay local")
	}

	processor := report.NewProcessor(store, transcriber, summarizer, mailerOrNil(mailer), report.Config{
		MinAudioDuration: cfg.Report.GetMinAudioDuration(),
		PurgeAfterSend:   cfg.Report.PurgeAfterSend,
	}, logger, appMetrics)

	relay := pipeline.NewRelay(arbiter, receiver, processor, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arbiter.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Address, logger) })
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Relay started")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-gctx.Done():
		logger.Info("Subsystem stopped, shutting down")
	}

	logger.Info("Starting graceful shutdown...")
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Shutdown finished with error", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// mailerOrNil widens the concrete mailer into the processor's interface
// without smuggling a typed nil through
func mailerOrNil(m *report.SMTPMailer) report.Mailer {
	if m == nil {
		return nil
	}
	return m
}

// serveMetrics exposes the Prometheus endpoint until the context ends
func serveMetrics(ctx context.Context, address string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: address, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	logger.Info("Metrics endpoint listening", slog.String("address", address))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics endpoint failed: %w", err)
	}
	return nil
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
