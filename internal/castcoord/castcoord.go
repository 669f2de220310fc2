// Package castcoord owns the cast session lifecycle and decides when to
// (re)load the stream and metadata onto a connected receiver. Session
// lifecycle notifications and state-store changes feed a single goroutine,
// which keeps the state machine free of shared mutable fields.
package castcoord

import (
	"context"

	"github.com/rs/zerolog"

	"castfm.app/castfm/internal/nowplaying"
	"castfm.app/castfm/internal/state"
)

// State is the session machine state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Suspended
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Suspended:
		return "Suspended"
	}
	return "Unknown"
}

// Event is a session lifecycle notification from the cast transport.
type Event int

const (
	SessionStarting Event = iota + 1
	SessionStarted
	SessionStartFailed
	SessionResuming
	SessionResumed
	SessionResumeFailed
	SessionEnding
	SessionEnded
	SessionSuspended
)

func (e Event) String() string {
	switch e {
	case SessionStarting:
		return "session starting"
	case SessionStarted:
		return "session started"
	case SessionStartFailed:
		return "session start failed"
	case SessionResuming:
		return "session resuming"
	case SessionResumed:
		return "session resumed"
	case SessionResumeFailed:
		return "session resume failed"
	case SessionEnding:
		return "session ending"
	case SessionEnded:
		return "session ended"
	case SessionSuspended:
		return "session suspended"
	}
	return "unknown"
}

// MediaDescriptor is everything a load command carries.
type MediaDescriptor struct {
	StreamURL   string
	ContentType string
	Buffered    bool
	Title       string
	Artist      string
	Album       string
	ImageURL    string
}

// MediaClient issues load commands against an active session.
type MediaClient interface {
	Load(MediaDescriptor) error
}

// Session is an externally managed cast session. The coordinator never
// constructs one; it only receives handles through lifecycle notifications.
type Session interface {
	Connected() bool
	Media() MediaClient
}

// Config carries the station constants the coordinator loads media with.
type Config struct {
	DefaultStreamURL  string
	SilenceStreamURL  string
	DefaultArtworkURL string
	StationTitle      string
}

const contentTypeAudioMP3 = "audio/mp3"

type notification struct {
	event   Event
	session Session
}

// Coordinator runs the session state machine. All fields below the queue are
// owned by the Run goroutine.
type Coordinator struct {
	cfg    Config
	store  *state.Store
	logger zerolog.Logger

	queue   chan notification
	changes chan state.Change

	st        State
	session   Session
	track     *nowplaying.TrackInfo
	silent    bool
	streamURL string

	// Identity of the last load issued on the current session; redundant
	// loads are skipped so a live stream is not restarted on notifications
	// that change nothing.
	lastLoad *MediaDescriptor
}

// New subscribes to the store immediately, so changes published between
// construction and Run are buffered rather than lost. The subscription lives
// as long as the store; closing the store closes the channel.
func New(cfg Config, store *state.Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		queue:   make(chan notification, 16),
		changes: store.Subscribe(state.FieldTrack, state.FieldSilent, state.FieldStream),
		st:      Disconnected,
	}
}

// Notify feeds a session lifecycle notification into the machine. The
// session handle accompanies starting/started/resuming/resumed events and
// may be nil otherwise.
func (c *Coordinator) Notify(ev Event, s Session) {
	c.queue <- notification{event: ev, session: s}
}

// Run consumes lifecycle notifications and store changes until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	// A change may be both in the snapshot and buffered on the
	// subscription; applying it twice is harmless.
	c.track = c.store.Track()
	c.silent = c.store.Silent()
	c.streamURL = c.store.StreamURL()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.queue:
			c.handle(n)
		case ch, ok := <-c.changes:
			if !ok {
				return
			}
			c.apply(ch)
		}
	}
}

func (c *Coordinator) apply(ch state.Change) {
	switch ch.Field {
	case state.FieldTrack:
		c.track = ch.Track
	case state.FieldSilent:
		c.silent = ch.Silent
	case state.FieldStream:
		c.streamURL = ch.StreamURL
		// Stream resolution is not a load trigger; the resolved URL is
		// picked up on the next connect or track/silent change.
		return
	default:
		return
	}

	if c.st == Connected {
		c.updateCastMedia()
	}
}

func (c *Coordinator) handle(n notification) {
	c.store.Appendf("Cast %s.", n.event)

	switch n.event {
	case SessionStarting, SessionResuming:
		// A replacement session has nothing loaded yet, whatever the
		// previous one played.
		if n.session != c.session {
			c.lastLoad = nil
		}
		c.session = n.session
		c.setState(Connecting)

	case SessionStarted, SessionResumed:
		if n.session != nil && n.session != c.session {
			c.session = n.session
			c.lastLoad = nil
		}
		c.setState(Connected)
		c.updateCastMedia()

	case SessionStartFailed, SessionResumeFailed:
		c.session = nil
		c.lastLoad = nil
		c.setState(Disconnected)

	case SessionEnded:
		c.session = nil
		c.lastLoad = nil
		c.setState(Disconnected)

	case SessionSuspended:
		if c.st == Connected {
			c.setState(Suspended)
		}

	case SessionEnding:
		// Informational only; the ended notification follows.
	}
}

func (c *Coordinator) setState(next State) {
	if c.st == next {
		return
	}
	c.logger.Debug().Stringer("From", c.st).Stringer("To", next).Msg("session state change")
	c.st = next
}

// updateCastMedia issues a load for the current stream selection and track
// metadata. It is a logged no-op when no connected session is held, and it
// skips loads identical to the last one issued on this session.
func (c *Coordinator) updateCastMedia() {
	if c.st != Connected || c.session == nil || !c.session.Connected() {
		c.store.Appendf("Cannot update Cast media: not connected to cast session.")
		return
	}

	streamURL := c.cfg.DefaultStreamURL
	if c.streamURL != "" {
		streamURL = c.streamURL
	}
	if c.silent {
		streamURL = c.cfg.SilenceStreamURL
	}

	desc := MediaDescriptor{
		StreamURL:   streamURL,
		ContentType: contentTypeAudioMP3,
		Buffered:    true,
	}
	if c.track != nil {
		desc.Title = c.track.Title
		desc.Artist = c.track.Artist
		desc.Album = c.track.Album
		desc.ImageURL = c.track.ImageURL
		if desc.ImageURL == "" {
			desc.ImageURL = c.cfg.DefaultArtworkURL
		}
		c.store.Appendf("Metadata prepared: %s by %s", desc.Title, desc.Artist)
	} else {
		desc.Title = c.cfg.StationTitle
		desc.ImageURL = c.cfg.DefaultArtworkURL
		c.store.Appendf("Metadata prepared: station default.")
	}

	if c.lastLoad != nil && *c.lastLoad == desc {
		c.logger.Debug().Str("URL", streamURL).Msg("skipping redundant load")
		return
	}

	c.store.Appendf("Loading media to Cast device: %s (silent: %v)", streamURL, c.silent)
	if err := c.session.Media().Load(desc); err != nil {
		c.logger.Error().Err(err).Str("URL", streamURL).Msg("load failed")
		c.store.Appendf("Error loading media to Cast device: %v", err)
		// No retry here; the next state change is the implicit retry.
		return
	}

	loaded := desc
	c.lastLoad = &loaded
}
