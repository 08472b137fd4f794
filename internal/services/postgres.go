// Postgres [Source] implementation
//
// Reads rows directly through the pgx database/sql driver, each row as row_to_json text so the
// record keeps its column order and JSON shapes.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

// PostgresSource reads the catalog from a Postgres database.
type PostgresSource struct {
	db       *sql.DB
	table    string
	orderKey string
	logger   *log.Logger
}

// OpenPostgresSource opens a pgx-backed connection pool for dsn.
func OpenPostgresSource(dsn, table, orderKey string, logger *log.Logger) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open postgres: %v", shared.ErrConnection, err)
	}
	return NewPostgresSource(db, table, orderKey, logger), nil
}

// NewPostgresSource wraps an existing database handle.
func NewPostgresSource(db *sql.DB, table, orderKey string, logger *log.Logger) *PostgresSource {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if orderKey == "" {
		orderKey = "id"
	}
	return &PostgresSource{db: db, table: table, orderKey: orderKey, logger: logger}
}

// Name returns the source kind.
func (p *PostgresSource) Name() string {
	return shared.SourcePostgres
}

// Close releases the connection pool.
func (p *PostgresSource) Close() error {
	return p.db.Close()
}

func (p *PostgresSource) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	return nil
}

func (p *PostgresSource) Count(ctx context.Context) (int, error) {
	query := "SELECT count(*) FROM " + quoteIdent(p.table)

	var n int
	if err := p.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", p.table, err)
	}
	return n, nil
}

func (p *PostgresSource) FetchRange(ctx context.Context, offset, limit int, orderKey string) ([]models.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", shared.ErrInvalidArgument)
	}
	if orderKey == "" {
		orderKey = p.orderKey
	}

	query := fmt.Sprintf(
		"SELECT row_to_json(t)::text FROM (SELECT * FROM %s ORDER BY %s ASC LIMIT $1 OFFSET $2) t",
		quoteIdent(p.table), quoteIdent(orderKey),
	)
	p.logger.Debug("postgres page", "table", p.table, "offset", offset, "limit", limit)

	return p.query(ctx, query, limit, offset)
}

func (p *PostgresSource) FetchAll(ctx context.Context, table string) ([]models.Record, error) {
	query := fmt.Sprintf(
		"SELECT row_to_json(t)::text FROM (SELECT * FROM %s ORDER BY %s ASC) t",
		quoteIdent(table), quoteIdent(p.orderKey),
	)
	return p.query(ctx, query)
}

func (p *PostgresSource) query(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := models.ParseRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// quoteIdent quotes a possibly schema-qualified identifier such as public.albums.
func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
