package models

import "fmt"

// Rule selects how a field is turned into cell text.
type Rule int

const (
	// RuleScalar renders the value as text; null becomes "".
	RuleScalar Rule = iota
	// RuleCount is a scalar that defaults to "0" when missing.
	RuleCount
	// RuleList joins string elements with "|".
	RuleList
	// RuleStructured serializes lists and maps through the size-bounded encoder.
	RuleStructured
)

func (r Rule) String() string {
	switch r {
	case RuleScalar:
		return "scalar"
	case RuleCount:
		return "count"
	case RuleList:
		return "list"
	case RuleStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Column maps one record field to one destination column.
type Column struct {
	Name  string
	Field string
	Rule  Rule
}

// Row is one destination row of cell text. Its length always equals its schema's width.
type Row []string

// IsEmpty reports whether every cell is blank.
func (r Row) IsEmpty() bool {
	for _, cell := range r {
		if cell != "" {
			return false
		}
	}
	return true
}

// Cell returns the cell at i, or "" past the end of a short row.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Schema is an ordered column list for one destination table.
type Schema struct {
	Name    string
	Columns []Column
}

// Header returns the column names in order.
func (s Schema) Header() Row {
	header := make(Row, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c.Name
	}
	return header
}

func (s Schema) Width() int { return len(s.Columns) }

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func col(name string, rule Rule) Column {
	return Column{Name: name, Field: name, Rule: rule}
}

// AlbumSchema is the fixed 17-column layout of the primary table.
var AlbumSchema = Schema{
	Name: "albums",
	Columns: []Column{
		col("id", RuleScalar),
		col("title", RuleScalar),
		col("year", RuleScalar),
		col("artist", RuleScalar),
		col("role", RuleScalar),
		col("type", RuleScalar),
		col("genres", RuleList),
		col("styles", RuleList),
		col("formats", RuleStructured),
		col("images", RuleStructured),
		col("tracklist", RuleStructured),
		col("track_count", RuleCount),
		col("credits", RuleStructured),
		col("cover_image", RuleScalar),
		col("formatted_year", RuleScalar),
		col("created_at", RuleScalar),
		col("updated_at", RuleScalar),
	},
}

// HistorySchemaFull is the 11-column scrape history layout.
var HistorySchemaFull = Schema{
	Name: "history",
	Columns: []Column{
		col("id", RuleScalar),
		col("artist_name", RuleScalar),
		col("discogs_id", RuleScalar),
		col("search_query", RuleScalar),
		col("scraped_at", RuleScalar),
		col("albums_found", RuleCount),
		col("albums_added", RuleCount),
		col("success", RuleScalar),
		col("notes", RuleScalar),
		col("created_at", RuleScalar),
		col("updated_at", RuleScalar),
	},
}

// HistorySchemaCompact is the 6-column scrape history layout.
var HistorySchemaCompact = Schema{
	Name: "history",
	Columns: []Column{
		col("id", RuleScalar),
		col("artist_name", RuleScalar),
		col("discogs_artist_id", RuleScalar),
		col("scraped_at", RuleScalar),
		col("album_count", RuleCount),
		col("status", RuleScalar),
	},
}

// HistorySchema resolves a history layout by name ("full" or "compact").
func HistorySchema(variant string) (Schema, error) {
	switch variant {
	case "", "full":
		return HistorySchemaFull, nil
	case "compact":
		return HistorySchemaCompact, nil
	default:
		return Schema{}, fmt.Errorf("unknown history schema %q", variant)
	}
}
