// Google Sheets [Destination] implementation
//
// Each table is a worksheet of one spreadsheet. Values are written RAW so ids and dates keep
// the exact text the transformer produced.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

// headerShade is the dark grey background of formatted header rows.
const headerShade = 0.2

// SheetsDestination writes tables as worksheets of one Google spreadsheet.
type SheetsDestination struct {
	spreadsheetID string
	svc           *sheets.Service
	formatHeader  bool
	logger        *log.Logger
}

// SheetsOptions configures a [SheetsDestination].
//
// CredentialsJSON is a service-account key. ClientOptions, when set, replace the credential
// handling entirely (used to point the client at a test server).
type SheetsOptions struct {
	SpreadsheetID   string
	CredentialsJSON []byte
	FormatHeader    bool
	Logger          *log.Logger
	ClientOptions   []option.ClientOption
}

// TokenSourceFromKey builds a token source for the spreadsheets scope from a service-account key.
func TokenSourceFromKey(ctx context.Context, key []byte) (oauth2.TokenSource, error) {
	conf, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}
	return conf.TokenSource(ctx), nil
}

// NewSheetsDestination creates a Sheets client for one spreadsheet.
func NewSheetsDestination(ctx context.Context, opts SheetsOptions) (*SheetsDestination, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is required", shared.ErrInvalidConfig)
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		ts, err := TokenSourceFromKey(ctx, opts.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		clientOpts = []option.ClientOption{option.WithTokenSource(ts)}
	}

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sheets client: %v", shared.ErrConnection, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &SheetsDestination{
		spreadsheetID: opts.SpreadsheetID,
		svc:           svc,
		formatHeader:  opts.FormatHeader,
		logger:        logger,
	}, nil
}

// Name returns the destination kind.
func (s *SheetsDestination) Name() string {
	return shared.DestinationSheets
}

// Title fetches the spreadsheet title, which doubles as an access check.
func (s *SheetsDestination) Title(ctx context.Context) (string, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", wrapSheetsErr("get spreadsheet", err)
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

func (s *SheetsDestination) FindTable(ctx context.Context, name string) (*Table, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, wrapSheetsErr("list worksheets", err)
	}

	for _, sh := range ss.Sheets {
		if sh.Properties == nil || sh.Properties.Title != name {
			continue
		}
		t := &Table{Name: name, ID: sh.Properties.SheetId}
		if gp := sh.Properties.GridProperties; gp != nil {
			t.Rows = int(gp.RowCount)
			t.Columns = int(gp.ColumnCount)
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTableNotFound, name)
}

func (s *SheetsDestination) GetOrCreateTable(ctx context.Context, name string, columnCount, rowCapacityHint int) (*Table, error) {
	t, err := s.FindTable(ctx, name)
	switch {
	case err == nil:
		if t.Rows < rowCapacityHint {
			if err := s.appendDimension(ctx, t, "ROWS", rowCapacityHint-t.Rows); err != nil {
				return nil, err
			}
		}
		if t.Columns < columnCount {
			if err := s.appendDimension(ctx, t, "COLUMNS", columnCount-t.Columns); err != nil {
				return nil, err
			}
		}
		return t, nil
	case !errors.Is(err, shared.ErrTableNotFound):
		return nil, err
	}

	req := &sheets.Request{AddSheet: &sheets.AddSheetRequest{
		Properties: &sheets.SheetProperties{
			Title: name,
			GridProperties: &sheets.GridProperties{
				RowCount:    int64(rowCapacityHint),
				ColumnCount: int64(columnCount),
			},
		},
	}}
	resp, err := s.batchUpdate(ctx, "add worksheet", req)
	if err != nil {
		return nil, err
	}

	t = &Table{Name: name, Columns: columnCount, Rows: rowCapacityHint, Created: true}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		t.ID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	s.logger.Info("created worksheet", "table", name, "rows", rowCapacityHint, "columns", columnCount)

	if s.formatHeader {
		if _, err := s.batchUpdate(ctx, "format header", headerFormatRequest(t.ID)); err != nil {
			s.logger.Warn("header formatting failed", "table", name, "error", err)
		}
	}
	return t, nil
}

func (s *SheetsDestination) DeleteTable(ctx context.Context, t *Table) error {
	req := &sheets.Request{DeleteSheet: &sheets.DeleteSheetRequest{
		SheetId:         t.ID,
		ForceSendFields: []string{"SheetId"},
	}}
	if _, err := s.batchUpdate(ctx, "delete worksheet", req); err != nil {
		return err
	}
	s.logger.Info("deleted worksheet", "table", t.Name)
	return nil
}

func (s *SheetsDestination) ClearDataRows(ctx context.Context, t *Table, header models.Row) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, a1(t.Name, "A2:ZZ"), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return wrapSheetsErr("clear values", err)
	}
	return s.WriteRange(ctx, t, 1, 1, []models.Row{header})
}

func (s *SheetsDestination) WriteRange(ctx context.Context, t *Table, startRow, endRow int, rows []models.Row) error {
	if startRow < 1 || endRow-startRow+1 != len(rows) {
		return fmt.Errorf("%w: rows %d..%d do not fit %d values", shared.ErrInvalidArgument, startRow, endRow, len(rows))
	}

	// writes past the grid are rejected, so grow it first
	if t.Rows > 0 && endRow > t.Rows {
		if err := s.appendDimension(ctx, t, "ROWS", endRow-t.Rows); err != nil {
			return err
		}
	}

	width := 1
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
		width = max(width, len(row))
	}

	rng := a1(t.Name, fmt.Sprintf("A%d:%s%d", startRow, columnLetter(width), endRow))
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrapSheetsErr("update values", err)
	}
	return nil
}

func (s *SheetsDestination) ReadRange(ctx context.Context, t *Table, startRow, endRow int) ([]models.Row, error) {
	return s.getValues(ctx, a1(t.Name, fmt.Sprintf("A%d:ZZ%d", startRow, endRow)))
}

func (s *SheetsDestination) ReadAllRows(ctx context.Context, t *Table) ([]models.Row, error) {
	return s.getValues(ctx, a1(t.Name, ""))
}

func (s *SheetsDestination) getValues(ctx context.Context, rng string) ([]models.Row, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrapSheetsErr("get values", err)
	}

	rows := make([]models.Row, len(vr.Values))
	for i, cells := range vr.Values {
		row := make(models.Row, len(cells))
		for j, cell := range cells {
			row[j] = cellText(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *SheetsDestination) appendDimension(ctx context.Context, t *Table, dimension string, length int) error {
	req := &sheets.Request{AppendDimension: &sheets.AppendDimensionRequest{
		SheetId:         t.ID,
		Dimension:       dimension,
		Length:          int64(length),
		ForceSendFields: []string{"SheetId"},
	}}
	if _, err := s.batchUpdate(ctx, "append "+strings.ToLower(dimension), req); err != nil {
		return err
	}

	if dimension == "ROWS" {
		t.Rows += length
	} else {
		t.Columns += length
	}
	s.logger.Debug("grew worksheet", "table", t.Name, "dimension", dimension, "by", length)
	return nil
}

func (s *SheetsDestination) batchUpdate(ctx context.Context, op string, reqs ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return nil, wrapSheetsErr(op, err)
	}
	return resp, nil
}

// headerFormatRequest styles row 1 bold white on dark grey.
func headerFormatRequest(sheetID int64) *sheets.Request {
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{
			SheetId:         sheetID,
			StartRowIndex:   0,
			EndRowIndex:     1,
			ForceSendFields: []string{"SheetId", "StartRowIndex"},
		},
		Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
			BackgroundColor: &sheets.Color{Red: headerShade, Green: headerShade, Blue: headerShade},
			TextFormat: &sheets.TextFormat{
				Bold:            true,
				ForegroundColor: &sheets.Color{Red: 1, Green: 1, Blue: 1},
			},
		}},
		Fields: "userEnteredFormat(backgroundColor,textFormat)",
	}}
}

func wrapSheetsErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: sheets %s: %d %s", shared.ErrAPIRequest, op, gerr.Code, gerr.Message)
	}
	return fmt.Errorf("%w: sheets %s: %v", shared.ErrAPIRequest, op, err)
}

// a1 builds an A1 range on a worksheet; an empty rng addresses the whole sheet.
func a1(sheet, rng string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

// columnLetter converts a 1-based column number to its letter name (1 -> A, 27 -> AA).
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
