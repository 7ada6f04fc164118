package seriallink

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Link is the byte transport under the transfer protocol. Reads are
// expected to poll: a read may return (0, nil) when no data arrived
// within the link's timeout, which is how loops notice cancellation.
type Link interface {
	io.ReadWriter
	Close() error
}

// Open opens a serial port in 8N1 at the given baud rate. The poll
// timeout bounds every blocking read so callers regain control even on
// a silent line.
func Open(device string, baud int, pollTimeout time.Duration) (Link, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", device, err)
	}

	return port, nil
}
