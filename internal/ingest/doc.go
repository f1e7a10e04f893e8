// Package ingest turns configured sources and one-off requests into items at
// the ingested stage.
//
// Every candidate's ID is computed before any network fetch and checked
// against the store, so re-running ingestion on an unchanged source set only
// costs the feed listings. Videos without captions fall back to a WhisperX
// transcription when enabled; a video that still yields no text produces no
// item and no error.
package ingest
