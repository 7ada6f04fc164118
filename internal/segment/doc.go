// Package segment turns a continuous stream of classified PCM frames into
// discrete speech recordings. It implements pre-roll buffering, silence
// endpointing, duration gating and atomic WAV persistence.
package segment
