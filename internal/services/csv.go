// CSV directory [Destination] implementation
//
// Each table is <dir>/<name>.csv. Used for dry runs and offline exports.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/formatter"
	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

// CSVDestination stores tables as CSV files in one directory with positional overwrite semantics.
type CSVDestination struct {
	dir    string
	logger *log.Logger
}

// NewCSVDestination creates a destination rooted at dir.
func NewCSVDestination(dir string, logger *log.Logger) *CSVDestination {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &CSVDestination{dir: dir, logger: logger}
}

func (c *CSVDestination) Name() string {
	return shared.DestinationCSV
}

// Title ensures the directory exists and returns its path.
func (c *CSVDestination) Title(ctx context.Context) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrConnection, err)
	}
	return c.dir, nil
}

func (c *CSVDestination) FindTable(ctx context.Context, name string) (*Table, error) {
	rows, err := c.load(name)
	if err != nil {
		return nil, err
	}

	t := &Table{Name: name, Rows: len(rows)}
	if len(rows) > 0 {
		t.Columns = len(rows[0])
	}
	return t, nil
}

func (c *CSVDestination) GetOrCreateTable(ctx context.Context, name string, columnCount, rowCapacityHint int) (*Table, error) {
	t, err := c.FindTable(ctx, name)
	if err == nil {
		t.Columns = max(t.Columns, columnCount)
		return t, nil
	}
	if !errors.Is(err, shared.ErrTableNotFound) {
		return nil, err
	}

	if err := c.save(name, nil); err != nil {
		return nil, err
	}
	c.logger.Info("created csv table", "table", name)
	return &Table{Name: name, Columns: columnCount, Created: true}, nil
}

func (c *CSVDestination) DeleteTable(ctx context.Context, t *Table) error {
	if err := os.Remove(c.path(t.Name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", t.Name, err)
	}
	return nil
}

func (c *CSVDestination) ClearDataRows(ctx context.Context, t *Table, header models.Row) error {
	return c.save(t.Name, []models.Row{header})
}

func (c *CSVDestination) WriteRange(ctx context.Context, t *Table, startRow, endRow int, rows []models.Row) error {
	if startRow < 1 || endRow-startRow+1 != len(rows) {
		return fmt.Errorf("%w: rows %d..%d do not fit %d values", shared.ErrInvalidArgument, startRow, endRow, len(rows))
	}

	existing, err := c.load(t.Name)
	if err != nil {
		return err
	}

	// blank filler rows keep the column count so the reader does not drop them
	for len(existing) < endRow {
		existing = append(existing, make(models.Row, max(t.Columns, 1)))
	}
	copy(existing[startRow-1:endRow], rows)

	if err := c.save(t.Name, existing); err != nil {
		return err
	}
	t.Rows = len(existing)
	return nil
}

func (c *CSVDestination) ReadRange(ctx context.Context, t *Table, startRow, endRow int) ([]models.Row, error) {
	rows, err := c.load(t.Name)
	if err != nil {
		return nil, err
	}

	if startRow < 1 {
		startRow = 1
	}
	if startRow > len(rows) {
		return []models.Row{}, nil
	}
	return rows[startRow-1 : min(endRow, len(rows))], nil
}

func (c *CSVDestination) ReadAllRows(ctx context.Context, t *Table) ([]models.Row, error) {
	return c.load(t.Name)
}

func (c *CSVDestination) path(name string) string {
	return filepath.Join(c.dir, name+".csv")
}

func (c *CSVDestination) load(name string) ([]models.Row, error) {
	f, err := os.Open(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTableNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	return formatter.ReadCSV(f)
}

func (c *CSVDestination) save(name string, rows []models.Row) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(c.path(name))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	defer f.Close()

	if len(rows) == 0 {
		return nil
	}
	if err := formatter.WriteCSV(f, rows[0], rows[1:]); err != nil {
		return err
	}
	return f.Close()
}
