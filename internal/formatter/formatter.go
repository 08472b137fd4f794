// package formatter turns catalog records into destination rows: size-bounded JSON for
// structured fields, plain text for the rest, and CSV for offline exports.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/albumvault/albumsheets/internal/models"
)

// WriteCSV writes header followed by rows as CSV.
func WriteCSV(w io.Writer, header models.Row, rows []models.Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportToCSV renders header and rows as CSV bytes.
func ExportToCSV(header models.Row, rows []models.Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, header, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses CSV data back into rows, header included.
func ReadCSV(r io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	rows := make([]models.Row, len(records))
	for i, rec := range records {
		rows[i] = models.Row(rec)
	}
	return rows, nil
}

// WriteCSVExport writes one table to dir/name.csv and returns the file path.
func WriteCSVExport(dir, name string, header models.Row, rows []models.Row) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := ExportToCSV(header, rows)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	path := filepath.Join(dir, name+".csv")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}
