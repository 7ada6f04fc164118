// Package control decides which of the relay's two modes is active.
// An external signal line selects between receiving files over the
// serial link and processing the day's recordings; the arbiter samples
// the line, debounces it and publishes transitions.
package control
