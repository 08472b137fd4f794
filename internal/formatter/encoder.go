package formatter

import (
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/albumvault/albumsheets/internal/models"
)

// DefaultCellLimit is the largest cell, in characters, the destination accepts with headroom.
const DefaultCellLimit = 45000

const (
	truncationMarker = "...[truncated]"
	// scalarReserve is the room kept free for the marker and quoting when cutting a scalar.
	scalarReserve = 20
	// mapFillRatio bounds how much of the budget an accumulated mapping may use.
	mapFillRatio = 0.8
)

// DefaultElementCaps is how many leading elements each known list field keeps when it overflows.
// Fields not listed keep their first half.
var DefaultElementCaps = map[string]int{
	"tracklist": 20,
	"credits":   30,
	"images":    3,
	"formats":   2,
}

// descriptiveKeys are tried in order to pick the sentinel field that carries the dropped count.
var descriptiveKeys = []string{"title", "name", "description", "value", "text"}

// Encoder serializes values as compact JSON no longer than a size budget, shrinking oversized
// values with field-aware truncation. It never fails.
type Encoder struct {
	caps      map[string]int
	truncated *atomic.Int64
}

// NewEncoder returns an Encoder using caps (nil means [DefaultElementCaps]). Every shrunk value
// increments truncated, which may be nil.
func NewEncoder(caps map[string]int, truncated *atomic.Int64) *Encoder {
	if caps == nil {
		caps = DefaultElementCaps
	}
	return &Encoder{caps: caps, truncated: truncated}
}

// Encode returns the compact JSON encoding of v with at most maxSize characters.
//
// A value whose encoding already fits is returned unchanged.
func (e *Encoder) Encode(v models.Value, field string, maxSize int) string {
	if maxSize <= 0 {
		e.markTruncated()
		return ""
	}

	data, err := v.MarshalCompact()
	if err != nil {
		e.markTruncated()
		return clampRunes(errorPlaceholder(err, maxSize), maxSize)
	}

	natural := string(data)
	if runeLen(natural) <= maxSize {
		return natural
	}

	e.markTruncated()

	var out string
	switch v.Kind() {
	case models.KindList:
		out = e.shrinkList(v.Items(), field, maxSize)
	case models.KindMap:
		out = shrinkMap(v.Entries(), maxSize)
	default:
		out = shrinkScalar(v.Text(), maxSize)
	}

	if out == "" {
		out = natural
	}
	return clampRunes(out, maxSize)
}

// BoundText cuts plain text longer than maxSize to fit, ending it with the truncation marker.
// Text that fits is returned as is.
func (e *Encoder) BoundText(s string, maxSize int) string {
	if runeLen(s) <= maxSize {
		return s
	}
	e.markTruncated()

	if maxSize <= len(truncationMarker) {
		return prefixRunes(s, max(maxSize, 0))
	}
	return prefixRunes(s, maxSize-len(truncationMarker)) + truncationMarker
}

func (e *Encoder) markTruncated() {
	if e.truncated != nil {
		e.truncated.Add(1)
	}
}

// capFor resolves the element cap for a field. A cap that would not shrink the list falls
// back to half its length.
func (e *Encoder) capFor(field string, n int) int {
	limit, ok := e.caps[field]
	if !ok || limit < 0 || limit >= n {
		return n / 2
	}
	return limit
}

// shrinkList keeps a prefix of items plus a sentinel describing what was dropped, halving the
// prefix until the encoding fits. It bottoms out at an empty list.
func (e *Encoder) shrinkList(items []models.Value, field string, maxSize int) string {
	n := len(items)
	for keep := e.capFor(field, n); ; keep /= 2 {
		kept := make([]models.Value, keep, keep+1)
		copy(kept, items[:keep])
		kept = append(kept, sentinelFor(items, n-keep))

		if data, err := models.List(kept...).MarshalCompact(); err == nil && runeLen(string(data)) <= maxSize {
			return string(data)
		}
		if keep == 0 {
			return "[]"
		}
	}
}

// sentinelFor builds an element shaped like items[0] whose descriptive field reads
// "...and N more". Non-mapping elements get a plain string sentinel.
func sentinelFor(items []models.Value, dropped int) models.Value {
	note := models.String("...and " + strconv.Itoa(dropped) + " more")
	if len(items) == 0 || items[0].Kind() != models.KindMap || len(items[0].Entries()) == 0 {
		return note
	}

	shape := items[0].Entries()
	target := shape[0].Key
	for _, key := range descriptiveKeys {
		if _, ok := items[0].Lookup(key); ok {
			target = key
			break
		}
	}

	entries := make([]models.Entry, len(shape))
	for i, entry := range shape {
		if entry.Key == target {
			entries[i] = models.E(entry.Key, note)
		} else {
			entries[i] = models.E(entry.Key, models.String(""))
		}
	}
	return models.Map(entries...)
}

// shrinkMap accumulates entries in order, stopping before the one that would take the
// encoding past 80% of maxSize.
func shrinkMap(entries []models.Entry, maxSize int) string {
	threshold := int(mapFillRatio * float64(maxSize))

	var b strings.Builder
	b.WriteByte('{')
	size := 2
	for i, entry := range entries {
		piece, err := models.Map(entry).MarshalCompact()
		if err != nil {
			break
		}
		// piece is `{"k":v}`; only the inner `"k":v` joins the accumulator
		inner := string(piece[1 : len(piece)-1])
		grow := runeLen(inner)
		if i > 0 {
			grow++
		}
		if size+grow > threshold {
			break
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(inner)
		size += grow
	}
	b.WriteByte('}')
	return b.String()
}

// shrinkScalar cuts text to maxSize-20 characters, appends the marker and re-encodes it as a
// JSON string, cutting further if escaping pushed it over.
func shrinkScalar(text string, maxSize int) string {
	for limit := maxSize - scalarReserve; limit >= 0; {
		encoded := quote(prefixRunes(text, limit) + truncationMarker)
		size := runeLen(encoded)
		if size <= maxSize {
			return encoded
		}
		limit -= max(size-maxSize, 1)
	}
	return ""
}

// errorPlaceholder renders {"error":"..."} for a value that could not be serialized.
func errorPlaceholder(err error, maxSize int) string {
	msg := err.Error()
	for {
		data, _ := models.Map(models.E("error", models.String(msg))).MarshalCompact()
		size := runeLen(string(data))
		if size <= maxSize || msg == "" {
			return string(data)
		}
		msg = prefixRunes(msg, max(runeLen(msg)-(size-maxSize), 0))
	}
}

func quote(s string) string {
	data, _ := models.String(s).MarshalCompact()
	return string(data)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// prefixRunes returns the first n characters of s.
func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// clampRunes is the last-resort guard for budgets smaller than any valid encoding.
func clampRunes(s string, maxSize int) string {
	if runeLen(s) <= maxSize {
		return s
	}
	return prefixRunes(s, maxSize)
}
