// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified as per-item failures, batch halts, or fatal configuration
//     problems.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
