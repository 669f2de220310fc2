// Package poller drives the periodic now-playing refresh. The loop tolerates
// any per-cycle failure and only stops on cancellation.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"castfm.app/castfm/internal/nowplaying"
	"castfm.app/castfm/internal/state"
)

// DefaultInterval is the pause between the end of one fetch attempt and the
// start of the next.
const DefaultInterval = 15 * time.Second

// Fetcher produces the current track, or nil when there is no update.
type Fetcher interface {
	FetchNowPlaying(ctx context.Context) *nowplaying.TrackInfo
}

// Poller repeatedly invokes the Fetcher and applies successful results to
// the store. Failed cycles keep the last-known-good track.
type Poller struct {
	Fetcher  Fetcher
	Store    *state.Store
	Interval time.Duration
	Logger   zerolog.Logger
}

// Run polls until ctx is cancelled. A failing or even panicking cycle is
// logged and the loop proceeds to the next one.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.Store.Appendf("Starting data polling.")

	for {
		if ctx.Err() != nil {
			p.Store.Appendf("Polling loop ended.")
			return
		}

		p.cycle(ctx)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.Store.Appendf("Polling loop ended.")
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error().Interface("Panic", r).Msg("poll cycle panic recovered")
			p.Store.Appendf("Error in polling: %v", r)
		}
	}()

	p.Store.Appendf("Fetching now playing data...")

	info := p.Fetcher.FetchNowPlaying(ctx)
	if info == nil {
		p.Store.Appendf("No new track info.")
		return
	}
	// A fetch that raced cancellation never applies its result.
	if ctx.Err() != nil {
		return
	}

	p.Store.SetTrack(info)
	p.Store.Appendf("Fetched: %s - %s", info.Title, info.Artist)
}
