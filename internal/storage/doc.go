// Package storage provides the session-scoped filesystem store shared by
// the segment sink and the serial receiver. Recordings are plain files in
// one directory per capture session; no index is kept.
package storage
