// Package item defines the unit of work that flows through the content
// pipeline: its identity, source kind, lifecycle stage, and the structured
// drafts attached as it advances.
//
// Stage transitions are table driven (see transitions) so the runner, the
// store, and the CLI agree on which moves are legal. Identifiers are derived
// deterministically from the source so repeated ingestion of the same source
// collapses onto one record.
package item
