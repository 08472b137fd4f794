package tasks

import "sync/atomic"

// Counters is the run-scoped tally of records moved. The truncation counter is shared with the
// encoder; all fields are atomic so a UI may read them while the run writes.
type Counters struct {
	Fetched      atomic.Int64
	Written      atomic.Int64
	Truncated    atomic.Int64
	Failed       atomic.Int64
	PagesSkipped atomic.Int64
	// Unfetched counts source records inside skipped pages, bounded by the counted snapshot.
	Unfetched atomic.Int64
}

// CounterSnapshot is a frozen copy of [Counters].
type CounterSnapshot struct {
	Fetched      int64 `json:"fetched"`
	Written      int64 `json:"written"`
	Truncated    int64 `json:"truncated"`
	Failed       int64 `json:"failed"`
	PagesSkipped int64 `json:"pages_skipped"`
	Unfetched    int64 `json:"unfetched"`
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Fetched:      c.Fetched.Load(),
		Written:      c.Written.Load(),
		Truncated:    c.Truncated.Load(),
		Failed:       c.Failed.Load(),
		PagesSkipped: c.PagesSkipped.Load(),
		Unfetched:    c.Unfetched.Load(),
	}
}
