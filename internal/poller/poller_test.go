package poller

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"castfm.app/castfm/internal/nowplaying"
	"castfm.app/castfm/internal/state"
)

// alternatingFetcher returns a track on odd calls and nil on even calls.
type alternatingFetcher struct {
	calls int
}

func (f *alternatingFetcher) FetchNowPlaying(_ context.Context) *nowplaying.TrackInfo {
	f.calls++
	if f.calls%2 == 0 {
		return nil
	}
	return &nowplaying.TrackInfo{Title: "Song", Artist: "Artist"}
}

type panickyFetcher struct{}

func (panickyFetcher) FetchNowPlaying(_ context.Context) *nowplaying.TrackInfo {
	panic("boom")
}

func TestCycleKeepsLastKnownGood(t *testing.T) {
	store := state.NewStore()
	defer store.Close()

	f := &alternatingFetcher{}
	p := &Poller{Fetcher: f, Store: store, Logger: zerolog.Nop()}

	ctx := context.Background()

	p.cycle(ctx) // success
	first := store.Track()
	if first == nil {
		t.Fatal("Track() = nil after successful cycle")
	}

	p.cycle(ctx) // nil result
	if store.Track() != first {
		t.Fatal("failed cycle replaced last-known-good track")
	}

	p.cycle(ctx) // success again
	if store.Track() == first {
		t.Fatal("successful cycle did not replace track")
	}
}

func TestCycleRecoversFromPanic(t *testing.T) {
	store := state.NewStore()
	defer store.Close()

	p := &Poller{Fetcher: panickyFetcher{}, Store: store, Logger: zerolog.Nop()}

	// Must not propagate the panic.
	p.cycle(context.Background())
	p.cycle(context.Background())

	if store.Track() != nil {
		t.Fatal("Track() set despite panicking fetcher")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := state.NewStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := &alternatingFetcher{}
	p := &Poller{Fetcher: f, Store: store, Interval: 5 * time.Millisecond, Logger: zerolog.Nop()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	// Let a few cycles run, then cancel.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if f.calls == 0 {
		t.Fatal("fetcher never invoked")
	}
	if store.Track() == nil {
		t.Fatal("Track() = nil after successful cycles")
	}
}
