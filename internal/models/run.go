package models

import (
	"fmt"
	"time"
)

// Run statuses as stored in the run history.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Mismatch is one sampled row whose destination copy differs from its source.
type Mismatch struct {
	RowIndex      int
	ExpectedID    string
	ActualID      string
	ExpectedTitle string
	ActualTitle   string
}

// Run is one persisted migration run with its final counters and verdict.
type Run struct {
	id              string
	sequence        int
	status          string
	finalState      string
	source          string
	destination     string
	expectedPrimary int
	expectedAux     int
	actualPrimary   int
	actualAux       int
	fetched         int64
	written         int64
	truncated       int64
	failed          int64
	pagesSkipped    int64
	unfetched       int64
	verified        bool
	errorMessage    string
	mismatches      []Mismatch
	startedAt       *time.Time
	completedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewRun creates a pending run for the given source and destination names.
func NewRun(source, destination string) *Run {
	now := time.Now()
	return &Run{
		status:      RunPending,
		source:      source,
		destination: destination,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (r *Run) ID() string              { return r.id }
func (r *Run) Sequence() int           { return r.sequence }
func (r *Run) Status() string          { return r.status }
func (r *Run) FinalState() string      { return r.finalState }
func (r *Run) Source() string          { return r.source }
func (r *Run) Destination() string     { return r.destination }
func (r *Run) ExpectedPrimary() int    { return r.expectedPrimary }
func (r *Run) ExpectedAux() int        { return r.expectedAux }
func (r *Run) ActualPrimary() int      { return r.actualPrimary }
func (r *Run) ActualAux() int          { return r.actualAux }
func (r *Run) Fetched() int64          { return r.fetched }
func (r *Run) Written() int64          { return r.written }
func (r *Run) Truncated() int64        { return r.truncated }
func (r *Run) Failed() int64           { return r.failed }
func (r *Run) PagesSkipped() int64     { return r.pagesSkipped }
func (r *Run) Unfetched() int64        { return r.unfetched }
func (r *Run) Verified() bool          { return r.verified }
func (r *Run) ErrorMessage() string    { return r.errorMessage }
func (r *Run) Mismatches() []Mismatch  { return r.mismatches }
func (r *Run) StartedAt() *time.Time   { return r.startedAt }
func (r *Run) CompletedAt() *time.Time { return r.completedAt }
func (r *Run) CreatedAt() time.Time    { return r.createdAt }
func (r *Run) UpdatedAt() time.Time    { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time   { return r.deletedAt }

func (r *Run) SetID(id string)             { r.id = id }
func (r *Run) SetSequence(seq int)         { r.sequence = seq }
func (r *Run) SetStatus(status string)     { r.status = status }
func (r *Run) SetFinalState(state string)  { r.finalState = state }
func (r *Run) SetVerified(ok bool)         { r.verified = ok }
func (r *Run) SetErrorMessage(msg string)  { r.errorMessage = msg }
func (r *Run) SetMismatches(m []Mismatch)  { r.mismatches = m }
func (r *Run) SetStartedAt(t *time.Time)   { r.startedAt = t }
func (r *Run) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *Run) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time)   { r.deletedAt = t }
func (r *Run) SetUnfetched(n int64)        { r.unfetched = n }

// SetExpected records the snapshot counts taken before transfer.
func (r *Run) SetExpected(primary, aux int) {
	r.expectedPrimary, r.expectedAux = primary, aux
}

// SetActual records the row counts observed at the destination.
func (r *Run) SetActual(primary, aux int) {
	r.actualPrimary, r.actualAux = primary, aux
}

// SetCounters records the final transfer counters.
func (r *Run) SetCounters(fetched, written, truncated, failed, pagesSkipped int64) {
	r.fetched = fetched
	r.written = written
	r.truncated = truncated
	r.failed = failed
	r.pagesSkipped = pagesSkipped
}

// Duration is the wall time between start and completion, or zero while unfinished.
func (r *Run) Duration() time.Duration {
	if r.startedAt == nil || r.completedAt == nil {
		return 0
	}
	return r.completedAt.Sub(*r.startedAt)
}

// Validate checks the run before it is persisted.
func (r *Run) Validate() error {
	if r.id == "" {
		return fmt.Errorf("run id is required")
	}
	switch r.status {
	case RunPending, RunRunning, RunSucceeded, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	if r.fetched < 0 || r.written < 0 || r.truncated < 0 || r.failed < 0 || r.pagesSkipped < 0 || r.unfetched < 0 {
		return fmt.Errorf("run counters cannot be negative")
	}
	if r.startedAt != nil && r.completedAt != nil && r.completedAt.Before(*r.startedAt) {
		return fmt.Errorf("run completed before it started")
	}
	return nil
}
