package seriallink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxlink/vox-capture-service/internal/protocol"
)

// ErrTransferRejected is returned when the receiver answers NACK
var ErrTransferRejected = errors.New("transfer rejected by receiver")

// Sender pushes files over the link one at a time: header line, payload
// in fixed-size chunks, then a blocking wait for the receiver's verdict.
// There is no retransmission; a NACK is reported to the caller, who
// decides whether to retry or keep the file for the next run.
type Sender struct {
	link      Link
	chunkSize int
	logger    *slog.Logger
}

// NewSender creates a sender over an open link
func NewSender(link Link, chunkSize int, logger *slog.Logger) *Sender {
	return &Sender{
		link:      link,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Send transfers one named payload and waits for the receiver's
// response. The header always carries the payload's CRC-32.
func (s *Sender) Send(ctx context.Context, filename string, payload []byte) error {
	header := &protocol.Header{
		Filename:    filename,
		Size:        int64(len(payload)),
		Checksum:    protocol.Checksum(payload),
		HasChecksum: true,
	}

	s.logger.Info("Sending file",
		slog.String("filename", filename),
		slog.Int("size", len(payload)))

	if _, err := s.link.Write([]byte(header.Encode())); err != nil {
		return fmt.Errorf("failed to send header for %s: %w", filename, err)
	}

	for off := 0; off < len(payload); off += s.chunkSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := off + s.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := s.link.Write(payload[off:end]); err != nil {
			return fmt.Errorf("failed to send payload for %s: %w", filename, err)
		}
	}

	response, err := s.awaitResponse(ctx)
	if err != nil {
		return fmt.Errorf("no response for %s: %w", filename, err)
	}

	switch response {
	case strings.TrimSuffix(protocol.ResponseACK, "\n"):
		s.logger.Info("Transfer acknowledged", slog.String("filename", filename))
		return nil
	case strings.TrimSuffix(protocol.ResponseNACK, "\n"):
		return fmt.Errorf("%w: %s", ErrTransferRejected, filename)
	default:
		return fmt.Errorf("unexpected response %q for %s", response, filename)
	}
}

// awaitResponse polls the link for the receiver's response line. The
// wait is bounded: a receiver that stays silent for stallPolls
// consecutive empty reads is declared dead so the caller never blocks
// forever on a disconnected peer.
func (s *Sender) awaitResponse(ctx context.Context) (string, error) {
	buf := make([]byte, 0, 8)
	b := make([]byte, 1)

	idle := 0
	for {
		n, err := s.link.Read(b)
		if err != nil {
			return "", err
		}
		if n == 0 {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			idle++
			if idle >= stallPolls {
				return "", fmt.Errorf("receiver silent after %d polls", idle)
			}
			continue
		}
		idle = 0

		if b[0] == '\n' {
			return strings.TrimRight(string(buf), "\r"), nil
		}
		buf = append(buf, b[0])
		if len(buf) > 16 {
			return "", fmt.Errorf("response line too long: %q", string(buf))
		}
	}
}
