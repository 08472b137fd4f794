package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

// ErrInjected is returned by the fakes for injected failures.
var ErrInjected = errors.New("injected failure")

// MemorySource is an in-memory [services.Source]. Records are served in slice order.
type MemorySource struct {
	mu      sync.Mutex
	records []models.Record
	tables  map[string][]models.Record
	offsets []int

	PingErr     error
	CountErr    error
	FetchAllErr error
	// FailOffsets makes FetchRange fail once for each listed offset.
	FailOffsets map[int]bool
}

// NewMemorySource serves records as the primary table and tables as auxiliary tables.
func NewMemorySource(records []models.Record, tables map[string][]models.Record) *MemorySource {
	if tables == nil {
		tables = map[string][]models.Record{}
	}
	return &MemorySource{records: records, tables: tables, FailOffsets: map[int]bool{}}
}

func (m *MemorySource) Name() string                   { return "memory" }
func (m *MemorySource) Ping(ctx context.Context) error { return m.PingErr }

func (m *MemorySource) Count(ctx context.Context) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *MemorySource) FetchRange(ctx context.Context, offset, limit int, orderKey string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.offsets = append(m.offsets, offset)
	if m.FailOffsets[offset] {
		delete(m.FailOffsets, offset)
		return nil, fmt.Errorf("%w: fetch at offset %d", ErrInjected, offset)
	}
	if offset >= len(m.records) {
		return []models.Record{}, nil
	}
	return slices.Clone(m.records[offset:min(offset+limit, len(m.records))]), nil
}

func (m *MemorySource) FetchAll(ctx context.Context, table string) ([]models.Record, error) {
	if m.FetchAllErr != nil {
		return nil, m.FetchAllErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tables[table]), nil
}

// Append adds records to the primary table, as a concurrently mutating source would.
func (m *MemorySource) Append(records ...models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

// Offsets returns every offset FetchRange was called with, in call order.
func (m *MemorySource) Offsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.offsets)
}

// WriteCall records one WriteRange attempt.
type WriteCall struct {
	Table    string
	StartRow int
	EndRow   int
	Failed   bool
}

type memTable struct {
	id   int64
	cols int
	rows []models.Row
}

// MemoryDestination is an in-memory [services.Destination] with positional overwrite
// semantics and per-range write fault injection.
type MemoryDestination struct {
	mu       sync.Mutex
	tables   map[string]*memTable
	nextID   int64
	calls    []WriteCall
	failures map[string]int
	deleted  []string

	TitleErr  error
	CreateErr error
	ClearErr  error
	ReadErr   error
	// OnWrite, when set, runs before each WriteRange attempt.
	OnWrite func(call WriteCall)
}

func NewMemoryDestination() *MemoryDestination {
	return &MemoryDestination{tables: map[string]*memTable{}, failures: map[string]int{}}
}

// FailWrites makes the next times writes to table starting at startRow fail.
func (m *MemoryDestination) FailWrites(table string, startRow, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey(table, startRow)] = times
}

// Seed creates a table holding rows, header included.
func (m *MemoryDestination) Seed(table string, rows ...models.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m.tables[table] = &memTable{id: m.nextID, cols: cols, rows: cloneRows(rows)}
}

// Rows returns a copy of every stored row of table, header included.
func (m *MemoryDestination) Rows(table string) []models.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	return cloneRows(t.rows)
}

// WriteCalls returns every WriteRange attempt in call order.
func (m *MemoryDestination) WriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Attempts counts WriteRange attempts against table starting at startRow.
func (m *MemoryDestination) Attempts(table string, startRow int) int {
	n := 0
	for _, c := range m.WriteCalls() {
		if c.Table == table && c.StartRow == startRow {
			n++
		}
	}
	return n
}

// Deleted lists the tables removed through DeleteTable.
func (m *MemoryDestination) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deleted)
}

func (m *MemoryDestination) Name() string { return "memory" }

func (m *MemoryDestination) Title(ctx context.Context) (string, error) {
	if m.TitleErr != nil {
		return "", m.TitleErr
	}
	return "Memory", nil
}

func (m *MemoryDestination) FindTable(ctx context.Context, name string) (*services.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTableNotFound, name)
	}
	return &services.Table{Name: name, ID: t.id, Columns: t.cols, Rows: len(t.rows)}, nil
}

func (m *MemoryDestination) GetOrCreateTable(ctx context.Context, name string, columnCount, rowCapacityHint int) (*services.Table, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if t, err := m.FindTable(ctx, name); err == nil {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.tables[name] = &memTable{id: m.nextID, cols: columnCount}
	return &services.Table{Name: name, ID: m.nextID, Columns: columnCount, Rows: rowCapacityHint, Created: true}, nil
}

func (m *MemoryDestination) DeleteTable(ctx context.Context, t *services.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, t.Name)
	m.deleted = append(m.deleted, t.Name)
	return nil
}

func (m *MemoryDestination) ClearDataRows(ctx context.Context, t *services.Table, header models.Row) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl, ok := m.tables[t.Name]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTableNotFound, t.Name)
	}
	tbl.rows = []models.Row{slices.Clone(header)}
	return nil
}

func (m *MemoryDestination) WriteRange(ctx context.Context, t *services.Table, startRow, endRow int, rows []models.Row) error {
	call := WriteCall{Table: t.Name, StartRow: startRow, EndRow: endRow}
	if m.OnWrite != nil {
		m.OnWrite(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := failureKey(t.Name, startRow)
	if m.failures[key] > 0 {
		m.failures[key]--
		call.Failed = true
		m.calls = append(m.calls, call)
		return fmt.Errorf("%w: write %s rows %d..%d", ErrInjected, t.Name, startRow, endRow)
	}
	m.calls = append(m.calls, call)

	if startRow < 1 || endRow-startRow+1 != len(rows) {
		return fmt.Errorf("%w: rows %d..%d do not fit %d values", shared.ErrInvalidArgument, startRow, endRow, len(rows))
	}
	tbl, ok := m.tables[t.Name]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTableNotFound, t.Name)
	}
	for len(tbl.rows) < endRow {
		tbl.rows = append(tbl.rows, models.Row{})
	}
	copy(tbl.rows[startRow-1:endRow], cloneRows(rows))
	return nil
}

func (m *MemoryDestination) ReadRange(ctx context.Context, t *services.Table, startRow, endRow int) ([]models.Row, error) {
	rows, err := m.ReadAllRows(ctx, t)
	if err != nil {
		return nil, err
	}
	if startRow > len(rows) {
		return []models.Row{}, nil
	}
	return rows[startRow-1 : min(endRow, len(rows))], nil
}

func (m *MemoryDestination) ReadAllRows(ctx context.Context, t *services.Table) ([]models.Row, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl, ok := m.tables[t.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTableNotFound, t.Name)
	}
	return cloneRows(tbl.rows), nil
}

func failureKey(table string, startRow int) string {
	return fmt.Sprintf("%s:%d", table, startRow)
}

func cloneRows(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

var (
	_ services.Source      = (*MemorySource)(nil)
	_ services.Destination = (*MemoryDestination)(nil)
)

// InstantTimer is a [backoff.Timer] that fires at once and records every requested wait.
type InstantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

var _ backoff.Timer = (*InstantTimer)(nil)

func NewInstantTimer() *InstantTimer {
	return &InstantTimer{c: make(chan time.Time, 1)}
}

func (t *InstantTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()

	select {
	case t.c <- time.Now():
	default:
	}
}

func (t *InstantTimer) Stop() {}

func (t *InstantTimer) C() <-chan time.Time { return t.c }

// Waits returns every duration the timer was started with, in call order.
func (t *InstantTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.waits)
}
