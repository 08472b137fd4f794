package tasks

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/albumvault/albumsheets/internal/formatter"
	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

const (
	DefaultPageSize                   = 300
	DefaultSampleSize                 = 5
	DefaultPrimaryCapacity            = 7000
	DefaultAuxCapacity                = 100
	DefaultMaxConsecutivePageFailures = 3
)

// Options is the explicit configuration of an [Engine].
type Options struct {
	SourceAuxTable string // source table copied whole into AuxTable
	PrimaryTable   string // destination table for the paged primary records
	AuxTable       string // destination table for the auxiliary records
	OrderKey       string

	PageSize     int
	ChunkSize    int
	SourceDelay  time.Duration // between page fetches
	ChunkDelay   time.Duration // between chunk writes
	PageDelay    time.Duration // between the chunk groups of two pages
	RetryBackoff time.Duration // before the single retry of a failed chunk

	Recreate        bool
	PrimaryCapacity int
	AuxCapacity     int

	CellLimit   int
	ElementCaps map[string]int
	SampleSize  int

	// MaxConsecutivePageFailures stops paging after this many failed fetches in a row, once the
	// cursor has passed the counted number of records.
	MaxConsecutivePageFailures int

	PrimarySchema models.Schema
	AuxSchema     models.Schema

	// Timer waits out retry backoffs; nil uses a real timer.
	Timer backoff.Timer
}

// DefaultOptions returns the defaults tuned for the Sheets API quotas.
func DefaultOptions() Options {
	return Options{
		SourceAuxTable:             "scraped_artists_history",
		PrimaryTable:               "Albums",
		AuxTable:                   "Scraped_History",
		OrderKey:                   "id",
		PageSize:                   DefaultPageSize,
		ChunkSize:                  DefaultChunkSize,
		SourceDelay:                500 * time.Millisecond,
		ChunkDelay:                 time.Second,
		PageDelay:                  2 * time.Second,
		RetryBackoff:               DefaultRetryBackoff,
		PrimaryCapacity:            DefaultPrimaryCapacity,
		AuxCapacity:                DefaultAuxCapacity,
		CellLimit:                  formatter.DefaultCellLimit,
		SampleSize:                 DefaultSampleSize,
		MaxConsecutivePageFailures: DefaultMaxConsecutivePageFailures,
		PrimarySchema:              models.AlbumSchema,
		AuxSchema:                  models.HistorySchemaFull,
	}
}

// OptionsFromConfig builds engine options from the loaded configuration.
func OptionsFromConfig(cfg *shared.Config) (Options, error) {
	aux, err := models.HistorySchema(cfg.Migration.HistorySchema)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	opts := DefaultOptions()
	opts.SourceAuxTable = cfg.Source.AuxTable
	opts.PrimaryTable = cfg.Destination.PrimaryTable
	opts.AuxTable = cfg.Destination.AuxTable
	opts.OrderKey = cfg.Source.OrderKey
	opts.PageSize = cfg.Source.PageSize
	opts.SourceDelay = cfg.Source.PageDelay.Duration
	opts.ChunkSize = cfg.Destination.ChunkSize
	opts.ChunkDelay = cfg.Destination.ChunkDelay.Duration
	opts.PageDelay = cfg.Destination.PageDelay.Duration
	opts.RetryBackoff = cfg.Destination.RetryBackoff.Duration
	opts.Recreate = cfg.Destination.Recreate
	opts.PrimaryCapacity = cfg.Destination.PrimaryCapacity
	opts.AuxCapacity = cfg.Destination.AuxCapacity
	opts.CellLimit = cfg.Migration.CellLimit
	opts.ElementCaps = cfg.Migration.ElementCaps
	opts.SampleSize = cfg.Migration.SampleSize
	opts.AuxSchema = aux
	return opts.withDefaults(), nil
}

// withDefaults fills zero values that would stall or break a run.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SourceAuxTable == "" {
		o.SourceAuxTable = d.SourceAuxTable
	}
	if o.PrimaryTable == "" {
		o.PrimaryTable = d.PrimaryTable
	}
	if o.AuxTable == "" {
		o.AuxTable = d.AuxTable
	}
	if o.OrderKey == "" {
		o.OrderKey = d.OrderKey
	}
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.CellLimit <= 0 {
		o.CellLimit = d.CellLimit
	}
	if o.SampleSize < 0 {
		o.SampleSize = 0
	}
	if o.MaxConsecutivePageFailures <= 0 {
		o.MaxConsecutivePageFailures = d.MaxConsecutivePageFailures
	}
	if len(o.PrimarySchema.Columns) == 0 {
		o.PrimarySchema = d.PrimarySchema
	}
	if len(o.AuxSchema.Columns) == 0 {
		o.AuxSchema = d.AuxSchema
	}
	return o
}
