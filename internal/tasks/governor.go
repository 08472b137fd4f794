package tasks

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Channel identifies a remote call stream paced by the [Governor].
type Channel int

const (
	SourceRead       Channel = iota // source page fetches
	DestinationWrite                // destination chunk writes
	DestinationPage                 // groups of chunks belonging to one source page
)

func (c Channel) String() string {
	switch c {
	case SourceRead:
		return "source_read"
	case DestinationWrite:
		return "destination_write"
	case DestinationPage:
		return "destination_page"
	default:
		return ""
	}
}

// Intervals sets the minimum spacing between calls on each channel. Zero disables pacing.
type Intervals struct {
	SourceRead       time.Duration
	DestinationWrite time.Duration
	DestinationPage  time.Duration
}

// Governor enforces a fixed minimum interval between calls on each channel.
//
// Each channel is a limiter with a burst of one, so at most one call passes per interval and
// the first call is never delayed. Channels never block each other.
type Governor struct {
	limiters map[Channel]*rate.Limiter
}

func NewGovernor(iv Intervals) *Governor {
	g := &Governor{limiters: map[Channel]*rate.Limiter{}}
	for ch, d := range map[Channel]time.Duration{
		SourceRead:       iv.SourceRead,
		DestinationWrite: iv.DestinationWrite,
		DestinationPage:  iv.DestinationPage,
	} {
		if d > 0 {
			g.limiters[ch] = rate.NewLimiter(rate.Every(d), 1)
		}
	}
	return g
}

// Wait blocks until a call on ch is allowed. It returns the context's error if ctx is done
// before or during the wait.
func (g *Governor) Wait(ctx context.Context, ch Channel) error {
	if g == nil {
		return ctx.Err()
	}
	l, ok := g.limiters[ch]
	if !ok {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
