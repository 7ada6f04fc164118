// Package protocol implements the serial file-transfer framing: an ASCII
// header line naming the file, its size and an optional CRC-32, followed
// by the raw payload and an ACK/NACK response line.
package protocol
