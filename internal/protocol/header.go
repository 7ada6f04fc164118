package protocol

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// Wire constants. A transfer is one header line, exactly Size payload
// bytes, then one response line from the receiver.
const (
	ResponseACK  = "ACK\n"
	ResponseNACK = "NACK\n"

	// MaxHeaderLength bounds a header line so a stream of garbage
	// without a newline cannot grow the read buffer forever.
	MaxHeaderLength = 512
)

// ErrMalformedHeader marks a header the receiver skips while keeping the
// link open: fewer than two fields, or an unparsable size.
var ErrMalformedHeader = errors.New("malformed transfer header")

// ErrChecksumMismatch marks a fully received payload whose CRC-32 does
// not match the declared checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Header is the parsed transfer header: filename, declared payload size
// and an optional expected CRC-32. Immutable once parsed.
type Header struct {
	Filename    string
	Size        int64
	Checksum    uint32
	HasChecksum bool
}

// ParseHeader parses one header line of the form
//
//	filename,size[,checksum]
//
// without the trailing newline. The checksum accepts any Go integer
// literal base (decimal or 0x-prefixed hex). An unparsable checksum on
// an otherwise valid header disables verification rather than rejecting
// the transfer, matching the sender's best-effort framing.
func ParseHeader(line string) (*Header, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) > MaxHeaderLength {
		return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedHeader, MaxHeaderLength)
	}

	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected at least 2 fields, got %d", ErrMalformedHeader, len(parts))
	}

	filename := strings.TrimSpace(parts[0])
	if filename == "" {
		return nil, fmt.Errorf("%w: empty filename", ErrMalformedHeader)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: invalid size %q", ErrMalformedHeader, parts[1])
	}

	header := &Header{
		Filename: filename,
		Size:     size,
	}

	if len(parts) >= 3 {
		if checksum, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 0, 32); err == nil {
			header.Checksum = uint32(checksum)
			header.HasChecksum = true
		}
	}

	return header, nil
}

// Encode renders the header as its wire line, newline included
func (h *Header) Encode() string {
	if h.HasChecksum {
		return fmt.Sprintf("%s,%d,0x%08x\n", h.Filename, h.Size, h.Checksum)
	}
	return fmt.Sprintf("%s,%d\n", h.Filename, h.Size)
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	if h.HasChecksum {
		return fmt.Sprintf("Header{File:%q, Size:%d, CRC:0x%08x}", h.Filename, h.Size, h.Checksum)
	}
	return fmt.Sprintf("Header{File:%q, Size:%d, CRC:none}", h.Filename, h.Size)
}

// Session tracks one in-flight transfer: the accepted header, the running
// CRC-32 and the byte counter. It lives from header acceptance until the
// declared size is reached or the link is abandoned.
type Session struct {
	Header   *Header
	Received int64
	crc      uint32
}

// NewSession starts a transfer session for an accepted header
func NewSession(header *Header) *Session {
	return &Session{Header: header}
}

// Update feeds a received chunk into the byte counter and, when the
// header declared a checksum, the running CRC-32.
func (s *Session) Update(chunk []byte) {
	s.Received += int64(len(chunk))
	if s.Header.HasChecksum {
		s.crc = crc32.Update(s.crc, crc32.IEEETable, chunk)
	}
}

// Remaining returns how many payload bytes are still expected
func (s *Session) Remaining() int64 {
	return s.Header.Size - s.Received
}

// Verify finalizes the session. It returns nil when the payload is
// complete and either no checksum was declared or the computed CRC-32
// matches.
func (s *Session) Verify() error {
	if s.Received != s.Header.Size {
		return fmt.Errorf("short payload: received %d of %d bytes", s.Received, s.Header.Size)
	}

	if s.Header.HasChecksum && s.crc != s.Header.Checksum {
		return fmt.Errorf("%w: computed 0x%08x, declared 0x%08x", ErrChecksumMismatch, s.crc, s.Header.Checksum)
	}

	return nil
}

// Checksum computes the CRC-32 (IEEE) of a complete payload, for senders
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}
