package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

const runColumns = `
	id, sequence, status, final_state, source, destination,
	expected_primary, expected_aux, actual_primary, actual_aux,
	fetched, written, truncated, failed, pages_skipped, unfetched, verified,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

// RunRepository implements [models.Repository] for [models.Run]
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new run into the database.
// Runs arriving without an ID get one generated.
func (r *RunRepository) Create(run *models.Run) error {
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	run.SetSequence(sequence)

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.Status(),
		run.FinalState(),
		run.Source(),
		run.Destination(),
		run.ExpectedPrimary(),
		run.ExpectedAux(),
		run.ActualPrimary(),
		run.ActualAux(),
		run.Fetched(),
		run.Written(),
		run.Truncated(),
		run.Failed(),
		run.PagesSkipped(),
		run.Unfetched(),
		run.Verified(),
		run.ErrorMessage(),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
		run.DeletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return r.saveMismatches(run)
}

// Get retrieves a run by ID with its sample mismatches, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	mismatches, err := r.Mismatches(id)
	if err != nil {
		return nil, err
	}
	run.SetMismatches(mismatches)
	return run, nil
}

// Latest returns the most recently created run.
func (r *RunRepository) Latest() (*models.Run, error) {
	runs, err := r.List(map[string]any{"limit": 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs recorded", shared.ErrRunNotFound)
	}
	return r.Get(runs[0].ID())
}

// Update modifies an existing run and replaces its recorded mismatches
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, final_state = ?, expected_primary = ?, expected_aux = ?,
			actual_primary = ?, actual_aux = ?, fetched = ?, written = ?,
			truncated = ?, failed = ?, pages_skipped = ?, unfetched = ?, verified = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.Status(),
		run.FinalState(),
		run.ExpectedPrimary(),
		run.ExpectedAux(),
		run.ActualPrimary(),
		run.ActualAux(),
		run.Fetched(),
		run.Written(),
		run.Truncated(),
		run.Failed(),
		run.PagesSkipped(),
		run.Unfetched(),
		run.Verified(),
		run.ErrorMessage(),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", shared.ErrRunNotFound, run.ID())
	}

	return r.saveMismatches(run)
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", shared.ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "status" (string), "verified" (bool) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if verified, ok := criteria["verified"].(bool); ok {
		query += " AND verified = ?"
		args = append(args, verified)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Mismatches returns the sample rows recorded as differing for a run, in row order.
func (r *RunRepository) Mismatches(runID string) ([]models.Mismatch, error) {
	query := `
		SELECT row_index, expected_id, actual_id, expected_title, actual_title
		FROM run_mismatches
		WHERE run_id = ?
		ORDER BY row_index
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mismatches: %w", err)
	}
	defer rows.Close()

	var mismatches []models.Mismatch
	for rows.Next() {
		var m models.Mismatch
		if err := rows.Scan(&m.RowIndex, &m.ExpectedID, &m.ActualID, &m.ExpectedTitle, &m.ActualTitle); err != nil {
			return nil, fmt.Errorf("failed to scan mismatch: %w", err)
		}
		mismatches = append(mismatches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mismatches, nil
}

// saveMismatches replaces the stored mismatches of a run in one transaction.
func (r *RunRepository) saveMismatches(run *models.Run) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_mismatches WHERE run_id = ?", run.ID()); err != nil {
		return fmt.Errorf("failed to clear mismatches: %w", err)
	}

	for _, m := range run.Mismatches() {
		_, err := tx.Exec(`
			INSERT INTO run_mismatches (run_id, row_index, expected_id, actual_id, expected_title, actual_title)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID(), m.RowIndex, m.ExpectedID, m.ActualID, m.ExpectedTitle, m.ActualTitle)
		if err != nil {
			return fmt.Errorf("failed to insert mismatch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mismatches: %w", err)
	}
	return nil
}

// scanOne scans a single [sql.Row] into a [models.Run]
func (r *RunRepository) scanOne(row *sql.Row) (*models.Run, error) {
	run, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	return run, err
}

// scanRow scans a row from [sql.Rows] into a [models.Run]
func (r *RunRepository) scanRow(rows *sql.Rows) (*models.Run, error) {
	return r.scan(rows)
}

func (r *RunRepository) scan(row rowScanner) (*models.Run, error) {
	var (
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
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &status, &finalState, &source, &destination,
		&expectedPrimary, &expectedAux, &actualPrimary, &actualAux,
		&fetched, &written, &truncated, &failed, &pagesSkipped, &unfetched, &verified,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(source, destination)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(status)
	run.SetFinalState(finalState)
	run.SetExpected(expectedPrimary, expectedAux)
	run.SetActual(actualPrimary, actualAux)
	run.SetCounters(fetched, written, truncated, failed, pagesSkipped)
	run.SetUnfetched(unfetched)
	run.SetVerified(verified)
	run.SetErrorMessage(errorMessage)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
