package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxlink/vox-capture-service/internal/audio"
	"github.com/voxlink/vox-capture-service/internal/metrics"
	"github.com/voxlink/vox-capture-service/internal/storage"
	"github.com/voxlink/vox-capture-service/internal/transcribe"
)

// Mailer delivers the finished report. The zip archive travels as an
// attachment path so the mailer can stream it.
type Mailer interface {
	Send(subject, body string, attachments []string) error
}

// Config contains the processing pass configuration
type Config struct {
	MinAudioDuration time.Duration // recordings shorter than this are purged unprocessed
	PurgeAfterSend   bool
}

// Processor turns one store of received recordings into a report. A
// failing transcription skips that one file and the pass continues;
// only a failed delivery marks the whole run as failed.
type Processor struct {
	store       *storage.Store
	transcriber transcribe.Transcriber
	summarizer  transcribe.Summarizer // nil disables summarization
	mailer      Mailer                // nil disables delivery
	config      Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewProcessor creates a processor over the given store and collaborators
func NewProcessor(store *storage.Store, transcriber transcribe.Transcriber, summarizer transcribe.Summarizer,
	mailer Mailer, config Config, logger *slog.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		store:       store,
		transcriber: transcriber,
		summarizer:  summarizer,
		mailer:      mailer,
		config:      config,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// Run executes one processing pass over the store. An empty store is a
// successful no-op.
func (p *Processor) Run(ctx context.Context) error {
	names, err := p.store.List(".wav")
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}
	if len(names) == 0 {
		p.logger.Info("No recordings to process")
		return nil
	}

	p.logger.Info("Processing recordings", slog.Int("count", len(names)))

	transcript, processed := p.transcribeAll(ctx, names)
	if processed == 0 {
		p.logger.Warn("No recordings survived filtering and transcription")
		return nil
	}

	date := p.now().Format("2006-01-02")
	transcriptName := fmt.Sprintf("transcripts_%s.txt", date)
	if _, err := p.store.Put(transcriptName, []byte(transcript)); err != nil {
		return fmt.Errorf("failed to write daily transcript: %w", err)
	}

	summary := p.summarize(ctx, transcript)

	if p.mailer != nil {
		archiveName := fmt.Sprintf("recordings_%s.zip", date)
		remaining, err := p.store.List(".wav")
		if err != nil {
			return fmt.Errorf("failed to list recordings for archive: %w", err)
		}
		archivePath, err := BuildArchive(p.store, append(remaining, transcriptName), archiveName)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordReportFailed()
			}
			return fmt.Errorf("failed to build archive: %w", err)
		}

		subject := fmt.Sprintf("Voice recordings report %s", date)
		if err := p.mailer.Send(subject, summary, []string{archivePath}); err != nil {
			if p.metrics != nil {
				p.metrics.RecordReportFailed()
			}
			return fmt.Errorf("failed to send report: %w", err)
		}
		p.logger.Info("Report sent", slog.String("date", date))
		if p.metrics != nil {
			p.metrics.RecordReportSent()
		}

		if p.config.PurgeAfterSend {
			p.purge(append(append(remaining, transcriptName), archiveName))
		}
	}

	return nil
}

// transcribeAll filters and transcribes the recordings, returning the
// tagged combined transcript and the number of recordings that made it
// in. Each transcript chunk is prefixed with the recording time taken
// from the file's modification timestamp.
func (p *Processor) transcribeAll(ctx context.Context, names []string) (string, int) {
	var builder strings.Builder
	processed := 0

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		data, err := p.store.Read(name)
		if err != nil {
			p.logger.Error("Failed to read recording",
				slog.String("filename", name),
				slog.String("error", err.Error()))
			continue
		}

		seconds, err := audio.WAVDuration(data)
		if err != nil {
			p.logger.Error("Unreadable recording, skipping",
				slog.String("filename", name),
				slog.String("error", err.Error()))
			continue
		}

		duration := time.Duration(seconds * float64(time.Second))
		if duration < p.config.MinAudioDuration {
			p.logger.Info("Purging short recording",
				slog.String("filename", name),
				slog.Duration("duration", duration))
			if err := p.store.Remove(name); err != nil {
				p.logger.Warn("Failed to remove short recording",
					slog.String("filename", name),
					slog.String("error", err.Error()))
			} else if p.metrics != nil {
				p.metrics.RecordFilesPurged(1)
			}
			continue
		}

		recordedAt, err := p.store.ModTime(name)
		if err != nil {
			recordedAt = p.now()
		}

		if p.metrics != nil {
			p.metrics.RecordTranscriptionRequest()
		}
		started := time.Now()
		text, err := p.transcriber.Transcribe(ctx, name, data)
		if err != nil {
			p.logger.Error("Transcription failed, skipping recording",
				slog.String("filename", name),
				slog.String("error", err.Error()))
			if p.metrics != nil {
				p.metrics.RecordTranscriptionFailure(time.Since(started).Seconds())
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordTranscriptionSuccess(time.Since(started).Seconds())
		}

		fmt.Fprintf(&builder, "[%s] %s\n\n", recordedAt.Format("2006-01-02 15:04:05"), text)
		processed++
	}

	return builder.String(), processed
}

// summarize condenses the transcript, falling back to the raw text
// when no summarizer is configured or summarization fails
func (p *Processor) summarize(ctx context.Context, transcript string) string {
	if p.summarizer == nil {
		return transcript
	}

	summary, err := p.summarizer.Summarize(ctx, transcript)
	if err != nil {
		p.logger.Error("Summarization failed, sending raw transcript",
			slog.String("error", err.Error()))
		return transcript
	}
	return summary
}

// purge removes the named artifacts after a successful delivery
func (p *Processor) purge(names []string) {
	removed := 0
	for _, name := range names {
		if err := p.store.Remove(name); err != nil {
			p.logger.Warn("Failed to purge artifact",
				slog.String("filename", name),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	p.logger.Info("Purged sent artifacts", slog.Int("count", removed))
	if p.metrics != nil {
		p.metrics.RecordFilesPurged(removed)
	}
}
