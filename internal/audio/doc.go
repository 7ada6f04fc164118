// Package audio provides the live PCM frame source, the bounded frame queue
// between the capture callback and the segmentation engine, and WAV encoding
// for finished recordings.
package audio
