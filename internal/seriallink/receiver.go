package seriallink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/voxlink/vox-capture-service/internal/metrics"
	"github.com/voxlink/vox-capture-service/internal/protocol"
	"github.com/voxlink/vox-capture-service/internal/storage"
)

// errLineIdle marks a header poll that saw no data before cancellation
var errLineIdle = errors.New("no header data")

// stallPolls is how many consecutive empty payload polls the receiver
// tolerates before declaring the sender dead and answering NACK
const stallPolls = 60

// Receiver accepts file transfers from the link and writes them into the
// store. It answers each complete transfer with ACK or NACK and leaves
// partial files on disk when a transfer breaks off, so truncated
// recordings can still be inspected.
type Receiver struct {
	link      Link
	store     *storage.Store
	chunkSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewReceiver creates a receiver over an open link
func NewReceiver(link Link, store *storage.Store, chunkSize int, logger *slog.Logger, m *metrics.Metrics) *Receiver {
	return &Receiver{
		link:      link,
		store:     store,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   m,
	}
}

// Run accepts transfers until the context is cancelled. The loop only
// notices cancellation between link polls, so the link's read timeout
// bounds shutdown latency.
func (r *Receiver) Run(ctx context.Context) error {
	r.logger.Info("Serial receiver started")

	for {
		line, err := r.readLine(ctx)
		if err != nil {
			if errors.Is(err, errLineIdle) {
				if ctx.Err() != nil {
					r.logger.Info("Serial receiver stopped")
					return nil
				}
				continue
			}
			return fmt.Errorf("serial link failed: %w", err)
		}

		header, err := protocol.ParseHeader(line)
		if err != nil {
			r.logger.Warn("Rejecting malformed transfer header",
				slog.String("line", line),
				slog.String("error", err.Error()))
			if r.metrics != nil {
				r.metrics.RecordMalformedHeader()
			}
			continue
		}

		if err := r.receiveFile(ctx, header); err != nil {
			if ctx.Err() != nil {
				r.logger.Warn("Transfer interrupted by shutdown",
					slog.String("filename", header.Filename))
				return nil
			}
			return err
		}
	}
}

// readLine polls the link byte-wise for a header line. It returns
// errLineIdle when no byte at all arrived, so the caller can check for
// cancellation; once a first byte is in, it keeps polling until the
// newline or the length bound.
func (r *Receiver) readLine(ctx context.Context) (string, error) {
	buf := make([]byte, 0, 64)
	b := make([]byte, 1)

	for {
		n, err := r.link.Read(b)
		if err != nil {
			return "", err
		}
		if n == 0 {
			if len(buf) == 0 {
				return "", errLineIdle
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		if b[0] == '\n' {
			return string(buf), nil
		}
		buf = append(buf, b[0])
		if len(buf) > protocol.MaxHeaderLength {
			// Swallow the rest of the runaway line so its tail is not
			// mistaken for the next header, then let ParseHeader
			// reject what we kept.
			if err := r.drainLine(ctx); err != nil {
				return "", err
			}
			return string(buf), nil
		}
	}
}

// drainLine consumes link bytes up to and including the next newline.
// A sender that stops mid-line is given the same stall budget as a
// payload transfer.
func (r *Receiver) drainLine(ctx context.Context) error {
	b := make([]byte, 1)
	idle := 0

	for {
		n, err := r.link.Read(b)
		if err != nil {
			return err
		}
		if n == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			idle++
			if idle >= stallPolls {
				return nil
			}
			continue
		}
		idle = 0

		if b[0] == '\n' {
			return nil
		}
	}
}

// receiveFile reads one declared payload into the store and answers with
// ACK or NACK. Write and verification failures are answered, not
// returned; only transport and cancellation errors abort the loop.
func (r *Receiver) receiveFile(ctx context.Context, header *protocol.Header) error {
	r.logger.Info("Receiving file",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.Bool("has_checksum", header.HasChecksum))
	if r.metrics != nil {
		r.metrics.RecordTransferStarted()
	}

	out, err := r.store.Create(header.Filename)
	if err != nil {
		r.logger.Error("Failed to create output file",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		return r.respond(protocol.ResponseNACK, header, false)
	}

	session := protocol.NewSession(header)
	writeErr := r.readPayload(ctx, session, out)
	closeErr := out.Close()

	if ctx.Err() != nil {
		// Partial file stays in place for inspection.
		return ctx.Err()
	}
	if writeErr != nil {
		r.logger.Error("Transfer failed mid-payload",
			slog.String("filename", header.Filename),
			slog.Int64("received", session.Received),
			slog.String("error", writeErr.Error()))
		return r.respond(protocol.ResponseNACK, header, false)
	}
	if closeErr != nil {
		return r.respond(protocol.ResponseNACK, header, false)
	}

	if err := session.Verify(); err != nil {
		r.logger.Error("Transfer verification failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		return r.respond(protocol.ResponseNACK, header, errors.Is(err, protocol.ErrChecksumMismatch))
	}

	r.logger.Info("File received",
		slog.String("filename", header.Filename),
		slog.Int64("size", session.Received))
	return r.respond(protocol.ResponseACK, header, false)
}

// readPayload streams the declared number of bytes from the link into
// the file, updating the session's counter and CRC as chunks land
func (r *Receiver) readPayload(ctx context.Context, session *protocol.Session, out *os.File) error {
	chunk := make([]byte, r.chunkSize)
	idle := 0

	for session.Remaining() > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		want := session.Remaining()
		if want > int64(r.chunkSize) {
			want = int64(r.chunkSize)
		}

		n, err := r.link.Read(chunk[:want])
		if err != nil {
			return err
		}
		if n == 0 {
			idle++
			if idle >= stallPolls {
				return fmt.Errorf("sender stalled after %d of %d bytes", session.Received, session.Header.Size)
			}
			continue
		}
		idle = 0

		if _, err := out.Write(chunk[:n]); err != nil {
			return fmt.Errorf("failed to write payload: %w", err)
		}
		session.Update(chunk[:n])
		if r.metrics != nil {
			r.metrics.RecordBytesReceived(n)
		}
	}

	return nil
}

// respond writes the response line and records the outcome
func (r *Receiver) respond(response string, header *protocol.Header, checksumMismatch bool) error {
	if r.metrics != nil {
		if response == protocol.ResponseACK {
			r.metrics.RecordTransferAcked()
		} else {
			r.metrics.RecordTransferNacked(checksumMismatch)
		}
	}

	if _, err := r.link.Write([]byte(response)); err != nil {
		return fmt.Errorf("failed to send response for %s: %w", header.Filename, err)
	}
	return nil
}
