// Package vad provides voice activity detection over fixed-duration PCM
// frames. The detector is a stateless energy-based predicate; segmentation
// hysteresis lives in the segment package.
package vad
