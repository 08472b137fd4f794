package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a migration run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    State           // State the engine is in
	Step     int             // Current step number within phase
	Total    int             // Total steps in this phase (0 when unknown)
	Message  string          // Human-readable message for display
	Counters CounterSnapshot // Counters at the time of the update
	Data     any             // Optional phase-specific data for advanced UIs
}

func stateUpdate(state State, message string, counters CounterSnapshot) ProgressUpdate {
	return ProgressUpdate{Phase: state, Message: message, Counters: counters}
}

func countedUpdate(primary, aux int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Counting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Source holds %d records and %d history rows", primary, aux),
	}
}

func pageUpdate(page, pages, offset int, stats WriteStats, counters CounterSnapshot) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] Wrote rows %d-%d", page, pages, offset+1, offset+stats.Written+stats.Failed)
	if stats.FailedChunks > 0 {
		msg += fmt.Sprintf(" (%d chunks failed)", stats.FailedChunks)
	}
	return ProgressUpdate{
		Phase:    Transferring,
		Step:     page,
		Total:    pages,
		Message:  msg,
		Counters: counters,
	}
}

func pageSkippedUpdate(page, pages, offset int, err error, counters CounterSnapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:    Transferring,
		Step:     page,
		Total:    pages,
		Message:  fmt.Sprintf("[%d/%d] ✗ Skipped page at offset %d: %v", page, pages, offset, err),
		Counters: counters,
	}
}

func auxWrittenUpdate(table string, stats WriteStats, counters CounterSnapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:    Transferring,
		Message:  fmt.Sprintf("Wrote %d history rows to %s", stats.Written, table),
		Counters: counters,
	}
}

func verdictUpdate(result *Result) ProgressUpdate {
	msg := "✓ Reconciliation passed"
	if !result.Verified {
		msg = "✗ Reconciliation failed"
	}
	return ProgressUpdate{
		Phase:    result.State,
		Step:     1,
		Total:    1,
		Message:  msg,
		Counters: result.Counters,
		Data:     result,
	}
}
