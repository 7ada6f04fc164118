// Package report runs the daily processing pass: short recordings are
// purged, the rest are transcribed and tagged with their recording
// time, the combined transcript is summarized, and the result is
// emailed together with a zip archive of the day's files.
package report
