// Package tasks moves the album catalog from a [services.Source] into a [services.Destination]
// in bounded batches and attests completeness afterwards.
//
// # Pipeline
//
// [Engine.Run] walks a fixed state machine:
//
//	Idle → ConnectingSource → ConnectingDestination → Counting → PreparingDestination
//	     → Transferring → Reconciling → {Succeeded, Failed}
//
// Each step in turn:
//
//  1. Connecting: ping the source, read the destination title
//  2. Counting: snapshot the primary count and fetch the whole auxiliary table
//  3. PreparingDestination: [Writer.ResetSchema] for both tables (recreate or reuse-and-clear)
//  4. Transferring: [Paginator] pages → formatter.Transformer → [Writer.WriteRows] chunks
//  5. Reconciling: [Reconciler.Verify] compares non-empty data rows to the snapshot
//
// Failures in steps 1-3 are fatal and wrap [shared.ErrConnection] or [shared.ErrSchemaPreparation].
// Later failures degrade into [Counters]: a failed page is skipped and its records are counted as
// unfetched, a chunk failing twice is counted as failed rows. The verdict is reconciliation's alone.
//
// # Pacing
//
// A [Governor] keeps a minimum interval per [Channel]: page fetches, chunk writes and page groups
// are paced independently. Each chunk is retried exactly once after a fixed backoff.
//
// # Positions
//
// Rows are written at absolute positions derived from the page offset, data row n landing on
// destination row n+1. Re-running against an unchanged source rewrites identical content.
//
// # Progress Reporting
//
// All runs use non-blocking channels for progress updates.
// The [ProgressUpdate] struct carries the state, step counters, a message and a counter snapshot.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface persists each run (repositories.RunRepository).
// Recording errors are logged and never fail a run.
package tasks
