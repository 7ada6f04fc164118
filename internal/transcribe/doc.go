// Package transcribe turns recorded WAV files into text. Two backends
// are provided: the AssemblyAI upload-and-poll HTTP API and the OpenAI
// audio transcription endpoint. Both also summarize finished
// transcripts for the daily report, AssemblyAI through LeMUR and
// OpenAI through chat completions.
package transcribe
