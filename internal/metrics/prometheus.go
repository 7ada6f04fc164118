package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the vox capture service
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	QueueSize      prometheus.Gauge

	// Segmentation metrics
	SegmentsEmitted   prometheus.Counter
	SegmentsDiscarded prometheus.Counter
	SegmentDuration   prometheus.Histogram
	SpeechFrames      prometheus.Counter

	// Transfer metrics
	TransfersStarted   prometheus.Counter
	TransfersAcked     prometheus.Counter
	TransfersNacked    prometheus.Counter
	BytesReceived      prometheus.Counter
	ChecksumMismatches prometheus.Counter
	MalformedHeaders   prometheus.Counter

	// Control metrics
	ModeTransitions *prometheus.CounterVec

	// Processing metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	ReportsSent            prometheus.Counter
	ReportsFailed          prometheus.Counter
	FilesPurged            prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_frames_captured_total",
			Help: "Total number of audio frames captured",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_frames_dropped_total",
			Help: "Total number of audio frames dropped due to a full queue",
		}),
		QueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vox_frame_queue_size",
			Help: "Current number of frames in the capture queue",
		}),

		// Segmentation metrics
		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_segments_emitted_total",
			Help: "Total number of speech segments written to storage",
		}),
		SegmentsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_segments_discarded_total",
			Help: "Total number of segments discarded for insufficient speech",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vox_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		SpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_speech_frames_total",
			Help: "Total number of frames classified as speech",
		}),

		// Transfer metrics
		TransfersStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transfers_started_total",
			Help: "Total number of serial transfers with an accepted header",
		}),
		TransfersAcked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transfers_acked_total",
			Help: "Total number of transfers answered with ACK",
		}),
		TransfersNacked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transfers_nacked_total",
			Help: "Total number of transfers answered with NACK",
		}),
		BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transfer_bytes_received_total",
			Help: "Total payload bytes received over the serial link",
		}),
		ChecksumMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_checksum_mismatches_total",
			Help: "Total number of transfers failing CRC-32 verification",
		}),
		MalformedHeaders: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_malformed_headers_total",
			Help: "Total number of rejected transfer header lines",
		}),

		// Control metrics
		ModeTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vox_mode_transitions_total",
			Help: "Total number of arbiter mode transitions",
		}, []string{"to"}),

		// Processing metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vox_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),
		ReportsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_reports_sent_total",
			Help: "Total number of daily reports emailed",
		}),
		ReportsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_reports_failed_total",
			Help: "Total number of daily report runs that failed",
		}),
		FilesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vox_files_purged_total",
			Help: "Total number of files removed after a report was sent",
		}),
	}
}

// RecordFrameCaptured increments the frames captured counter
func (m *Metrics) RecordFrameCaptured(isSpeech bool) {
	m.FramesCaptured.Inc()
	if isSpeech {
		m.SpeechFrames.Inc()
	}
}

// RecordFrameDropped increments the frames dropped counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// SetQueueSize sets the current capture queue depth
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// RecordSegmentEmitted records an emitted segment and its duration
func (m *Metrics) RecordSegmentEmitted(durationSeconds float64) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordSegmentDiscarded increments the discarded segments counter
func (m *Metrics) RecordSegmentDiscarded() {
	m.SegmentsDiscarded.Inc()
}

// RecordTransferStarted increments the transfers started counter
func (m *Metrics) RecordTransferStarted() {
	m.TransfersStarted.Inc()
}

// RecordTransferAcked increments the ACK counter
func (m *Metrics) RecordTransferAcked() {
	m.TransfersAcked.Inc()
}

// RecordTransferNacked increments the NACK counter and, when the failure
// was a CRC mismatch, the checksum mismatch counter
func (m *Metrics) RecordTransferNacked(checksumMismatch bool) {
	m.TransfersNacked.Inc()
	if checksumMismatch {
		m.ChecksumMismatches.Inc()
	}
}

// RecordBytesReceived adds to the received payload byte counter
func (m *Metrics) RecordBytesReceived(n int) {
	m.BytesReceived.Add(float64(n))
}

// RecordMalformedHeader increments the malformed header counter
func (m *Metrics) RecordMalformedHeader() {
	m.MalformedHeaders.Inc()
}

// RecordModeTransition records an arbiter transition into the named mode
func (m *Metrics) RecordModeTransition(mode string) {
	m.ModeTransitions.WithLabelValues(mode).Inc()
}

// RecordTranscriptionRequest increments the transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordReportSent increments the reports sent counter
func (m *Metrics) RecordReportSent() {
	m.ReportsSent.Inc()
}

// RecordReportFailed increments the reports failed counter
func (m *Metrics) RecordReportFailed() {
	m.ReportsFailed.Inc()
}

// RecordFilesPurged adds to the purged file counter
func (m *Metrics) RecordFilesPurged(count int) {
	m.FilesPurged.Add(float64(count))
}
