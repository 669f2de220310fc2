// Package state holds the shared playback state: the latest track record,
// the silent-mode toggle, the resolved stream URL and the diagnostic log
// ring. Every mutation is a whole-field replacement and is published exactly
// once, in mutation order, on a per-field change feed.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/cskr/pubsub/v2"

	"castfm.app/castfm/internal/nowplaying"
)

// Field identifies an observable store field.
type Field int

const (
	FieldTrack Field = iota + 1
	FieldSilent
	FieldStream
	FieldLog
)

// Change is a single field update delivered to subscribers. Only the member
// matching Field carries the new value.
type Change struct {
	Field     Field
	Track     *nowplaying.TrackInfo
	Silent    bool
	StreamURL string
	Log       string
}

const (
	maxLogLines = 50

	subscriberBuffer = 32
)

// Store is the process-wide playback state. The zero value is not usable;
// call NewStore.
type Store struct {
	mu        sync.Mutex
	track     *nowplaying.TrackInfo
	silent    bool
	streamURL string
	logs      []string
	pending   []Change

	bus  *pubsub.PubSub[Field, Change]
	wake chan struct{}
	done chan struct{}
	once sync.Once

	clock func() time.Time
}

func NewStore() *Store {
	s := &Store{
		bus:   pubsub.New[Field, Change](subscriberBuffer),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		clock: time.Now,
	}
	go s.dispatch()
	return s
}

// dispatch fans pending changes out to subscribers. A single dispatcher
// preserves mutation order across all fields, and a stalled subscriber
// stalls only the dispatcher, never a mutation.
func (s *Store) dispatch() {
	for {
		select {
		case <-s.wake:
			for _, c := range s.take() {
				s.bus.Pub(c, c.Field)
			}
		case <-s.done:
			s.bus.Shutdown()
			return
		}
	}
}

// take swaps out the pending batch. An empty batch is possible when a wake
// raced a previous drain.
func (s *Store) take() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

// enqueue appends to the pending batch and nudges the dispatcher. Callers
// hold mu; the append is unbounded so mutations never block.
func (s *Store) enqueue(c Change) {
	s.pending = append(s.pending, c)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel receiving one Change per mutation of the given
// fields. Subscribers must drain the channel promptly.
func (s *Store) Subscribe(fields ...Field) chan Change {
	return s.bus.Sub(fields...)
}

// Unsubscribe removes the channel from the given fields' feeds. It must not
// be called after Close; Close closes all subscriber channels itself.
func (s *Store) Unsubscribe(ch chan Change, fields ...Field) {
	s.bus.Unsub(ch, fields...)
}

// Close stops the change feed. Pending changes that were not yet dispatched
// are dropped.
func (s *Store) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Track returns the latest track record, or nil before the first successful
// poll.
func (s *Store) Track() *nowplaying.TrackInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// SetTrack replaces the track record wholesale.
func (s *Store) SetTrack(t *nowplaying.TrackInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t
	s.enqueue(Change{Field: FieldTrack, Track: t})
}

func (s *Store) Silent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silent
}

// ToggleSilent flips silent mode and returns the new value.
func (s *Store) ToggleSilent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = !s.silent
	s.enqueue(Change{Field: FieldSilent, Silent: s.silent})
	return s.silent
}

func (s *Store) StreamURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamURL
}

func (s *Store) SetStreamURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamURL = url
	s.enqueue(Change{Field: FieldStream, StreamURL: url})
}

// Logs returns a copy of the diagnostic log ring, oldest first.
func (s *Store) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs))
	copy(out, s.logs)
	return out
}

// Appendf timestamps and appends a diagnostic log line, evicting the oldest
// entry beyond the cap. It never blocks or fails the operation being logged.
func (s *Store) Appendf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.clock().Format("15:04:05") + ": " + fmt.Sprintf(format, args...)
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogLines {
		s.logs = s.logs[len(s.logs)-maxLogLines:]
	}

	s.enqueue(Change{Field: FieldLog, Log: entry})
}
