package services

import (
	"context"

	"github.com/albumvault/albumsheets/internal/models"
)

// Source is a read-only record store holding the primary table and the auxiliary history table.
type Source interface {
	// Name returns a short label for logs and run history (e.g. "postgrest").
	Name() string

	// Ping checks that the store is reachable and the credentials are accepted.
	Ping(ctx context.Context) error

	// Count returns the number of records in the primary table.
	Count(ctx context.Context) (int, error)

	// FetchRange returns up to limit primary records starting at position offset in ascending
	// orderKey order. An empty result means the end of the table.
	FetchRange(ctx context.Context, offset, limit int, orderKey string) ([]models.Record, error)

	// FetchAll returns every record of a small table.
	FetchAll(ctx context.Context, table string) ([]models.Record, error)
}

// Table is a handle on one destination table (a worksheet, or a CSV file).
type Table struct {
	Name    string
	ID      int64
	Columns int
	Rows    int
	Created bool
}

// Destination is a tabular store addressed by 1-based row numbers, row 1 being the header.
type Destination interface {
	// Name returns a short label for logs and run history (e.g. "sheets").
	Name() string

	// Title checks access and returns the destination's display title.
	Title(ctx context.Context) (string, error)

	// FindTable looks a table up by name, returning shared.ErrTableNotFound if it does not exist.
	FindTable(ctx context.Context, name string) (*Table, error)

	// GetOrCreateTable returns the named table, creating it with the given grid size if missing
	// and growing its row capacity to at least rowCapacityHint.
	GetOrCreateTable(ctx context.Context, name string, columnCount, rowCapacityHint int) (*Table, error)

	// DeleteTable removes a table entirely.
	DeleteTable(ctx context.Context, t *Table) error

	// ClearDataRows blanks every row below the header and rewrites the header as row 1.
	ClearDataRows(ctx context.Context, t *Table, header models.Row) error

	// WriteRange overwrites rows startRow..endRow (inclusive) with rows.
	WriteRange(ctx context.Context, t *Table, startRow, endRow int, rows []models.Row) error

	// ReadRange returns rows startRow..endRow (inclusive). Trailing blank rows may be omitted.
	ReadRange(ctx context.Context, t *Table, startRow, endRow int) ([]models.Row, error)

	// ReadAllRows returns every stored row, header included.
	ReadAllRows(ctx context.Context, t *Table) ([]models.Row, error)
}
