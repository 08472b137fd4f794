package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

// Reconciliation is the outcome of [Reconciler.Verify].
type Reconciliation struct {
	ExpectedPrimary int               `json:"expected_primary"`
	ExpectedAux     int               `json:"expected_aux"`
	ActualPrimary   int               `json:"actual_primary"`
	ActualAux       int               `json:"actual_aux"`
	SampleChecked   int               `json:"sample_checked"`
	Mismatches      []models.Mismatch `json:"mismatches,omitempty"`
	Err             error             `json:"-"`
	Match           bool              `json:"match"`
}

// ReconcilerOptions names the tables to read back and the sample to spot-check.
type ReconcilerOptions struct {
	PrimaryTable string
	AuxTable     string
	Schema       models.Schema
	SampleSize   int
}

// Reconciler re-reads destination row counts after a load and compares them to the source snapshot.
type Reconciler struct {
	dest   services.Destination
	opts   ReconcilerOptions
	logger *log.Logger
}

func NewReconciler(dest services.Destination, opts ReconcilerOptions, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Reconciler{dest: dest, opts: opts, logger: logger}
}

// Verify reports a match only when both tables hold exactly the expected number of non-empty
// data rows and, when sample is given, the first rows carry the same id and title.
//
// sample holds the expected rows for data rows 1..len(sample). Read failures never panic or
// return: they produce a failed verdict with Err set.
func (r *Reconciler) Verify(ctx context.Context, expectedPrimary, expectedAux int, sample []models.Row) Reconciliation {
	rec := Reconciliation{ExpectedPrimary: expectedPrimary, ExpectedAux: expectedAux}

	primary, err := r.countRows(ctx, r.opts.PrimaryTable)
	if err != nil {
		return r.fail(rec, err)
	}
	rec.ActualPrimary = primary

	aux, err := r.countRows(ctx, r.opts.AuxTable)
	if err != nil {
		return r.fail(rec, err)
	}
	rec.ActualAux = aux

	if primary != expectedPrimary || aux != expectedAux {
		r.logger.Warn("row count mismatch",
			"table", r.opts.PrimaryTable, "expected", expectedPrimary, "actual", primary,
			"aux_table", r.opts.AuxTable, "aux_expected", expectedAux, "aux_actual", aux)
		return rec
	}

	n := min(r.opts.SampleSize, len(sample))
	if n > 0 {
		mismatch, checked, err := r.checkSample(ctx, sample[:n])
		rec.SampleChecked = checked
		if err != nil {
			return r.fail(rec, err)
		}
		if mismatch != nil {
			rec.Mismatches = []models.Mismatch{*mismatch}
			r.logger.Warn("sample mismatch", "row", mismatch.RowIndex,
				"expected_id", mismatch.ExpectedID, "actual_id", mismatch.ActualID)
			return rec
		}
	}

	rec.Match = true
	r.logger.Info("reconciliation passed", "rows", primary, "aux_rows", aux, "sampled", rec.SampleChecked)
	return rec
}

// countRows counts non-empty rows below the header.
func (r *Reconciler) countRows(ctx context.Context, name string) (int, error) {
	t, err := r.dest.FindTable(ctx, name)
	if err != nil {
		return 0, err
	}
	rows, err := r.dest.ReadAllRows(ctx, t)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, row := range rows {
		if i > 0 && !row.IsEmpty() {
			n++
		}
	}
	return n, nil
}

// checkSample compares id and title of the first data rows, stopping at the first difference.
func (r *Reconciler) checkSample(ctx context.Context, expected []models.Row) (*models.Mismatch, int, error) {
	t, err := r.dest.FindTable(ctx, r.opts.PrimaryTable)
	if err != nil {
		return nil, 0, err
	}
	actual, err := r.dest.ReadRange(ctx, t, 2, len(expected)+1)
	if err != nil {
		return nil, 0, err
	}

	idCol, titleCol := r.opts.Schema.Index("id"), r.opts.Schema.Index("title")
	for i, want := range expected {
		var got models.Row
		if i < len(actual) {
			got = actual[i]
		}
		if got.Cell(idCol) != want.Cell(idCol) || got.Cell(titleCol) != want.Cell(titleCol) {
			return &models.Mismatch{
				RowIndex:      i + 1,
				ExpectedID:    want.Cell(idCol),
				ActualID:      got.Cell(idCol),
				ExpectedTitle: want.Cell(titleCol),
				ActualTitle:   got.Cell(titleCol),
			}, i + 1, nil
		}
	}
	return nil, len(expected), nil
}

func (r *Reconciler) fail(rec Reconciliation, err error) Reconciliation {
	rec.Err = fmt.Errorf("%w: %v", shared.ErrReconciliation, err)
	r.logger.Error("reconciliation failed", "error", err)
	return rec
}
