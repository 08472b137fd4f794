// Package repositories implements SQLite persistence for the run history.
//
// [RunRepository] stores one row per migration run with its counters, final state and verdict,
// plus the sampled rows that failed the post-run spot check. Runs are soft deleted via deleted_at
// and excluded from queries once deleted.
//
// Sequence numbers provide stable, human-readable ordering (e.g. run #42) independent of UUIDs and
// creation timestamps. The [NextSequence] function atomically increments per-table sequence counters
// in dedicated sequence tables.
package repositories
