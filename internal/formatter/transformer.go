package formatter

import (
	"strings"

	"github.com/albumvault/albumsheets/internal/models"
)

// ListDelimiter joins short tag lists such as genres and styles.
const ListDelimiter = "|"

// Transformer maps source records onto fixed-width destination rows.
type Transformer struct {
	enc       *Encoder
	cellLimit int
}

// NewTransformer returns a Transformer bounding structured cells to cellLimit characters
// (0 means [DefaultCellLimit]).
func NewTransformer(enc *Encoder, cellLimit int) *Transformer {
	if enc == nil {
		enc = NewEncoder(nil, nil)
	}
	if cellLimit <= 0 {
		cellLimit = DefaultCellLimit
	}
	return &Transformer{enc: enc, cellLimit: cellLimit}
}

// Header returns the header row for schema.
func Header(schema models.Schema) models.Row {
	return schema.Header()
}

// Transform renders rec as one row of schema. It never fails and the row always has one cell
// per column.
func (t *Transformer) Transform(schema models.Schema, rec models.Record) models.Row {
	row := make(models.Row, len(schema.Columns))
	for i, col := range schema.Columns {
		v, ok := rec.Get(col.Field)
		row[i] = t.cell(col, v, ok)
	}
	return row
}

// TransformAll renders every record in order.
func (t *Transformer) TransformAll(schema models.Schema, recs []models.Record) []models.Row {
	rows := make([]models.Row, len(recs))
	for i, rec := range recs {
		rows[i] = t.Transform(schema, rec)
	}
	return rows
}

func (t *Transformer) cell(col models.Column, v models.Value, present bool) string {
	switch col.Rule {
	case models.RuleCount:
		if !present || v.IsNull() {
			return "0"
		}
		return t.enc.BoundText(v.Text(), t.cellLimit)

	case models.RuleList:
		if !present || v.IsEmpty() {
			return ""
		}
		if v.Kind() != models.KindList {
			return t.enc.BoundText(v.Text(), t.cellLimit)
		}
		parts := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			parts = append(parts, item.Text())
		}
		return strings.Join(parts, ListDelimiter)

	case models.RuleStructured:
		if !present || v.IsEmpty() {
			return ""
		}
		if v.Kind() == models.KindString {
			return t.enc.BoundText(v.Str(), t.cellLimit)
		}
		return t.enc.Encode(v, col.Field, t.cellLimit)

	default:
		if !present || v.IsNull() {
			return ""
		}
		if v.Kind() == models.KindList || v.Kind() == models.KindMap {
			return t.enc.Encode(v, col.Field, t.cellLimit)
		}
		return t.enc.BoundText(v.Text(), t.cellLimit)
	}
}
