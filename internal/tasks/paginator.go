package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

// Cursor is an offset/limit position in the source's key ordering.
type Cursor struct {
	Offset int
	Limit  int
}

// Next returns the cursor of the following page.
func (c Cursor) Next() Cursor {
	return Cursor{Offset: c.Offset + c.Limit, Limit: c.Limit}
}

// Paginator pulls the primary table from a [services.Source] in fixed-size pages ordered by key.
type Paginator struct {
	src      services.Source
	gov      *Governor
	orderKey string
	logger   *log.Logger
}

func NewPaginator(src services.Source, gov *Governor, orderKey string, logger *log.Logger) *Paginator {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Paginator{src: src, gov: gov, orderKey: orderKey, logger: logger}
}

// FetchPage fetches pageSize records at cursor.
//
// An empty page sets done and is the only end signal. A failed fetch still advances next past
// the page and returns an error wrapping [shared.ErrPageFetch]; the caller decides to skip it.
// Cancellation of ctx during the pacing wait is returned unwrapped.
func (p *Paginator) FetchPage(ctx context.Context, cursor Cursor, pageSize int) (records []models.Record, next Cursor, done bool, err error) {
	cursor.Limit = pageSize
	next = cursor.Next()

	if err := p.gov.Wait(ctx, SourceRead); err != nil {
		return nil, cursor, false, err
	}

	records, err = p.src.FetchRange(ctx, cursor.Offset, pageSize, p.orderKey)
	if err != nil {
		p.logger.Warn("page fetch failed, skipping", "offset", cursor.Offset, "limit", pageSize, "error", err)
		return nil, next, false, fmt.Errorf("%w: offset %d: %v", shared.ErrPageFetch, cursor.Offset, err)
	}

	if len(records) == 0 {
		p.logger.Debug("empty page, end of source", "offset", cursor.Offset)
		return records, cursor, true, nil
	}

	p.logger.Debug("fetched page", "offset", cursor.Offset, "rows", len(records))
	return records, next, false, nil
}
