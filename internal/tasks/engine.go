package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/formatter"
	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

// State is a step of the migration state machine.
type State int32

const (
	Idle State = iota
	ConnectingSource
	ConnectingDestination
	Counting
	PreparingDestination
	Transferring
	Reconciling
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ConnectingSource:
		return "connecting_source"
	case ConnectingDestination:
		return "connecting_destination"
	case Counting:
		return "counting"
	case PreparingDestination:
		return "preparing_destination"
	case Transferring:
		return "transferring"
	case Reconciling:
		return "reconciling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether s ends a run.
func (s State) Terminal() bool { return s == Succeeded || s == Failed }

// RunRecorder persists run history. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
}

// Result is the verdict and counters of one run.
type Result struct {
	RunID           string          `json:"run_id"`
	State           State           `json:"state"`
	Verified        bool            `json:"verified"`
	Cancelled       bool            `json:"cancelled"`
	ExpectedPrimary int             `json:"expected_primary"`
	ExpectedAux     int             `json:"expected_aux"`
	Counters        CounterSnapshot `json:"counters"`
	Reconciliation  *Reconciliation `json:"reconciliation,omitempty"`
	Duration        time.Duration   `json:"duration"`
	Error           string          `json:"error,omitempty"`
}

// Engine runs migrations from a [services.Source] to a [services.Destination].
type Engine struct {
	src      services.Source
	dest     services.Destination
	opts     Options
	logger   *log.Logger
	recorder RunRecorder

	state    atomic.Int32
	counters atomic.Pointer[Counters]
	dropped  atomic.Int64
}

func NewEngine(src services.Source, dest services.Destination, opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	e := &Engine{src: src, dest: dest, opts: opts.withDefaults(), logger: logger}
	e.counters.Store(&Counters{})
	return e
}

// WithRecorder enables run history persistence.
func (e *Engine) WithRecorder(r RunRecorder) *Engine {
	e.recorder = r
	return e
}

// State returns the current state of the running (or last) run.
func (e *Engine) State() State { return State(e.state.Load()) }

// Counters returns a snapshot of the current run's counters.
func (e *Engine) Counters() CounterSnapshot { return e.counters.Load().Snapshot() }

// DroppedUpdates returns how many progress updates of the current run found the channel full.
// Every update carries a full counter snapshot, so a later one supersedes any dropped before it.
func (e *Engine) DroppedUpdates() int64 { return e.dropped.Load() }

// Run executes one migration.
//
// Failures while connecting, counting or preparing the destination are fatal: Run returns the
// result in the Failed state together with an error wrapping [shared.ErrConnection] or
// [shared.ErrSchemaPreparation]. Once transfer starts, page and chunk failures only feed the
// counters and reconciliation always runs, so the verdict depends on reconciliation alone.
// Cancelling ctx is honored between pages and chunks, and once more before the destination is
// touched; a cancelled run comes back with Cancelled set and a nil error.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*Result, error) {
	counters := &Counters{}
	e.counters.Store(counters)
	e.dropped.Store(0)
	started := time.Now()

	run := models.NewRun(e.src.Name(), e.dest.Name())
	run.SetID(shared.GenerateID())
	run.SetStatus(models.RunRunning)
	run.SetStartedAt(&started)
	e.record(run, true)

	logger := shared.WithLogger(e.logger, "run", run.ID())
	result := &Result{RunID: run.ID()}

	finish := func(state State, err error) (*Result, error) {
		e.transition(progress, logger, state, counters)
		result.State = state
		result.Counters = counters.Snapshot()
		result.Duration = time.Since(started)
		if err != nil {
			result.Error = err.Error()
		}
		e.complete(run, result)
		return result, err
	}

	e.transition(progress, logger, ConnectingSource, counters)
	if err := e.src.Ping(ctx); err != nil {
		return finish(Failed, fmt.Errorf("%w: source %s: %v", shared.ErrConnection, e.src.Name(), err))
	}

	e.transition(progress, logger, ConnectingDestination, counters)
	title, err := e.dest.Title(ctx)
	if err != nil {
		return finish(Failed, fmt.Errorf("%w: destination %s: %v", shared.ErrConnection, e.dest.Name(), err))
	}
	logger.Info("destination connected", "title", title)

	e.transition(progress, logger, Counting, counters)
	expected, err := e.src.Count(ctx)
	if err != nil {
		return finish(Failed, fmt.Errorf("%w: count: %v", shared.ErrConnection, err))
	}
	auxRecords, err := e.src.FetchAll(ctx, e.opts.SourceAuxTable)
	if err != nil {
		return finish(Failed, fmt.Errorf("%w: fetch %s: %v", shared.ErrConnection, e.opts.SourceAuxTable, err))
	}
	result.ExpectedPrimary, result.ExpectedAux = expected, len(auxRecords)
	run.SetExpected(expected, len(auxRecords))
	e.sendProgress(progress, countedUpdate(expected, len(auxRecords)))
	logger.Info("source counted", "rows", expected, "aux_rows", len(auxRecords))

	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		logger.Warn("run cancelled before transfer")
		res, _ := finish(Failed, err)
		return res, nil
	}

	e.transition(progress, logger, PreparingDestination, counters)
	gov := NewGovernor(Intervals{
		SourceRead:       e.opts.SourceDelay,
		DestinationWrite: e.opts.ChunkDelay,
		DestinationPage:  e.opts.PageDelay,
	})
	writer := NewWriter(e.dest, gov, WriterOptions{
		ChunkSize:    e.opts.ChunkSize,
		RetryBackoff: e.opts.RetryBackoff,
		Recreate:     e.opts.Recreate,
		Timer:        e.opts.Timer,
	}, logger)

	primaryTable, err := writer.ResetSchema(ctx, e.opts.PrimaryTable, formatter.Header(e.opts.PrimarySchema),
		max(e.opts.PrimaryCapacity, expected+1))
	if err != nil {
		return finish(Failed, err)
	}
	auxTable, err := writer.ResetSchema(ctx, e.opts.AuxTable, formatter.Header(e.opts.AuxSchema),
		max(e.opts.AuxCapacity, len(auxRecords)+1))
	if err != nil {
		return finish(Failed, err)
	}

	e.transition(progress, logger, Transferring, counters)
	tr := formatter.NewTransformer(formatter.NewEncoder(e.opts.ElementCaps, &counters.Truncated), e.opts.CellLimit)

	sample, cancelled := e.transferPrimary(ctx, progress, logger, writer, tr, primaryTable, expected, counters)
	if !cancelled {
		cancelled = e.transferAux(ctx, progress, writer, tr, auxTable, auxRecords, counters)
	}
	result.Cancelled = cancelled
	if cancelled {
		logger.Warn("run cancelled, reconciling what was written")
	}

	e.transition(progress, logger, Reconciling, counters)
	reconciler := NewReconciler(e.dest, ReconcilerOptions{
		PrimaryTable: e.opts.PrimaryTable,
		AuxTable:     e.opts.AuxTable,
		Schema:       e.opts.PrimarySchema,
		SampleSize:   e.opts.SampleSize,
	}, logger)
	rec := reconciler.Verify(context.WithoutCancel(ctx), expected, len(auxRecords), sample)
	result.Reconciliation = &rec
	result.Verified = rec.Match
	run.SetActual(rec.ActualPrimary, rec.ActualAux)
	run.SetMismatches(rec.Mismatches)

	state := Failed
	if rec.Match {
		state = Succeeded
	}
	if rec.Err != nil {
		result.Error = rec.Err.Error()
	}
	res, _ := finish(state, nil)
	e.sendProgress(progress, verdictUpdate(res))
	return res, nil
}

// transferPrimary pages the primary table into the destination. It returns the expected rows of
// the first data rows for the reconciliation sample and whether ctx was cancelled.
func (e *Engine) transferPrimary(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
	writer *Writer,
	tr *formatter.Transformer,
	table *services.Table,
	expected int,
	counters *Counters,
) ([]models.Row, bool) {
	pager := NewPaginator(e.src, writer.gov, e.opts.OrderKey, logger)
	pages := (expected + e.opts.PageSize - 1) / e.opts.PageSize

	var sample []models.Row
	cursor := Cursor{Limit: e.opts.PageSize}
	failures := 0

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return sample, true
		}

		records, next, done, err := pager.FetchPage(ctx, cursor, e.opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				return sample, true
			}
			counters.PagesSkipped.Add(1)
			counters.Unfetched.Add(int64(min(max(expected-cursor.Offset, 0), e.opts.PageSize)))
			e.sendProgress(progress, pageSkippedUpdate(page, max(pages, page), cursor.Offset, err, counters.Snapshot()))

			// pages inside the counted snapshot are always attempted; past it only an empty page
			// or repeated failures end paging
			failures++
			if next.Offset >= expected && failures >= e.opts.MaxConsecutivePageFailures {
				logger.Error("giving up after consecutive page failures", "failures", failures, "offset", cursor.Offset)
				return sample, false
			}
			cursor = next
			continue
		}
		failures = 0
		if done {
			logger.Info("primary table exported", "pages", page-1, "rows", counters.Fetched.Load())
			return sample, false
		}

		counters.Fetched.Add(int64(len(records)))
		rows := tr.TransformAll(e.opts.PrimarySchema, records)

		// only a contiguous prefix starting at data row 1 can be sampled
		if len(sample) == cursor.Offset && len(sample) < e.opts.SampleSize {
			sample = append(sample, rows[:min(len(rows), e.opts.SampleSize-len(sample))]...)
		}

		stats, err := writer.WriteRows(ctx, table, cursor.Offset+1, rows)
		counters.Written.Add(int64(stats.Written))
		counters.Failed.Add(int64(stats.Failed))
		e.sendProgress(progress, pageUpdate(page, max(pages, page), cursor.Offset, stats, counters.Snapshot()))
		if err != nil {
			return sample, true
		}

		cursor = next
	}
}

// transferAux writes the auxiliary table and reports whether ctx was cancelled.
func (e *Engine) transferAux(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	writer *Writer,
	tr *formatter.Transformer,
	table *services.Table,
	records []models.Record,
	counters *Counters,
) bool {
	counters.Fetched.Add(int64(len(records)))
	rows := tr.TransformAll(e.opts.AuxSchema, records)

	stats, err := writer.WriteRows(ctx, table, 1, rows)
	counters.Written.Add(int64(stats.Written))
	counters.Failed.Add(int64(stats.Failed))
	e.sendProgress(progress, auxWrittenUpdate(table.Name, stats, counters.Snapshot()))
	return err != nil
}

func (e *Engine) transition(progress chan<- ProgressUpdate, logger *log.Logger, s State, counters *Counters) {
	e.state.Store(int32(s))
	logger.Debug("state", "state", s)
	e.sendProgress(progress, stateUpdate(s, stateMessages[s], counters.Snapshot()))
}

var stateMessages = map[State]string{
	ConnectingSource:      "Connecting to source...",
	ConnectingDestination: "Connecting to destination...",
	Counting:              "Counting source records...",
	PreparingDestination:  "Preparing destination tables...",
	Transferring:          "Transferring records...",
	Reconciling:           "Reconciling row counts...",
	Succeeded:             "Migration succeeded",
	Failed:                "Migration failed",
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		e.dropped.Add(1)
	}
}

// record persists the run; history is best effort and never fails a migration.
func (e *Engine) record(run *models.Run, create bool) {
	if e.recorder == nil {
		return
	}

	var err error
	if create {
		err = e.recorder.Create(run)
	} else {
		err = e.recorder.Update(run)
	}
	if err != nil {
		e.logger.Warn("failed to record run", "run", run.ID(), "error", err)
	}
}

func (e *Engine) complete(run *models.Run, result *Result) {
	now := time.Now()
	run.SetCompletedAt(&now)
	run.SetUpdatedAt(now)
	run.SetFinalState(result.State.String())
	run.SetVerified(result.Verified)
	run.SetErrorMessage(result.Error)
	c := result.Counters
	run.SetCounters(c.Fetched, c.Written, c.Truncated, c.Failed, c.PagesSkipped)
	run.SetUnfetched(c.Unfetched)

	status := models.RunFailed
	if result.State == Succeeded {
		status = models.RunSucceeded
	}
	run.SetStatus(status)
	e.record(run, false)
}

// IsFatal reports whether err aborted a run before transfer.
func IsFatal(err error) bool {
	return errors.Is(err, shared.ErrConnection) || errors.Is(err, shared.ErrSchemaPreparation)
}
