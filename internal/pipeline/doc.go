// Package pipeline advances stored items through the stage handlers.
//
// A Runner lists every snapshot in a stage's source namespace and feeds the
// items one at a time into the stage handler. The store doubles as the job
// queue: an item whose target snapshot already sits at the target stage is
// skipped, so reruns are safe. Per-item failures are recorded as advisory
// snapshots under failed and the batch moves on; an exhausted budget or a
// configuration error stops the batch.
//
// RunLock serializes whole runs across processes with an flock on the state
// directory.
package pipeline
