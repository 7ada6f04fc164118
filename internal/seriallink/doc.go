// Package seriallink moves recorded files over a point-to-point serial
// line. The sender frames each file with a protocol header and waits for
// the receiver's ACK or NACK; the receiver verifies size and CRC-32
// before acknowledging.
package seriallink
