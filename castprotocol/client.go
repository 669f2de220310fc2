// Package castprotocol wraps go-chromecast behind the small session surface
// the coordinator drives: connect, load, status, close.
package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/cast"

	"castfm.app/castfm/internal/castcoord"
)

const (
	defaultCastPort = 8009

	maxLoadAttempts = 3
)

// loadRetryDelay is swappable for tests.
var loadRetryDelay = 2 * time.Second

// CastClient wraps a go-chromecast Application for simplified API.
type CastClient struct {
	app         *application.Application
	conn        cast.Conn // keep reference to connection for custom commands
	mu          sync.RWMutex
	host        string
	port        int
	connected   bool
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *CastClient) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Logger()
		})
	}
	return &c.Logger
}

func NewCastClient(deviceAddr string) (*CastClient, error) {
	u, err := url.Parse(deviceAddr)
	if err != nil {
		return nil, fmt.Errorf("parse device addr: %w", err)
	}

	host := u.Hostname()
	port := defaultCastPort
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Create our own connection that we can use for custom commands
	conn := cast.NewConnection()

	app := application.NewApplication(
		application.WithConnection(conn),
		application.WithConnectionRetries(3),
	)

	return &CastClient{
		app:  app,
		conn: conn,
		host: host,
		port: port,
	}, nil
}

// Connect establishes the connection to the Chromecast device.
func (c *CastClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.app == nil {
		return fmt.Errorf("chromecast connect: app is nil")
	}

	c.Log().Debug().Str("Method", "Connect").Str("Host", c.host).Int("Port", c.port).Msg("connecting")
	if err := c.app.Start(c.host, c.port); err != nil {
		c.Log().Error().Str("Method", "Connect").Err(err).Msg("connection failed")
		return fmt.Errorf("chromecast connect: %w", err)
	}
	c.connected = true
	c.Log().Debug().Str("Method", "Connect").Msg("connected successfully")
	return nil
}

// isTimeoutError checks if an error is a timeout/deadline exceeded error.
// This typically happens when the device needs to wake from sleep.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// Load launches the default media receiver and issues a LOAD for the stream
// described by desc, including the music metadata bundle.
func (c *CastClient) Load(desc castcoord.MediaDescriptor) error {
	c.Log().Debug().Str("Method", "Load").Str("URL", desc.StreamURL).Str("ContentType", desc.ContentType).Str("Title", desc.Title).Msg("loading media")

	// Handles cases where Close() was called but the client is being reused.
	if !c.IsConnected() {
		c.Log().Debug().Str("Method", "Load").Msg("connection closed, reconnecting")
		if err := c.Connect(); err != nil {
			return fmt.Errorf("reconnect before load: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		lastAttempt := attempt == maxLoadAttempts-1

		if !c.IsConnected() {
			c.Log().Debug().Str("Method", "Load").Msg("connection closed during load, aborting silently")
			return nil
		}

		c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Msg("launching default receiver")
		if err := launchReceiver(c.conn); err != nil {
			lastErr = err
			if isTimeoutError(err) && !lastAttempt {
				c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Err(err).Msg("timeout, device may be waking up, retrying...")
				time.Sleep(loadRetryDelay)
				continue
			}
			c.Log().Error().Str("Method", "Load").Err(err).Msg("launch receiver failed")
			return fmt.Errorf("launch receiver: %w", err)
		}

		// Retry getting app state with backoff (handles "media receiver app
		// not available" right after launch).
		transportId := c.waitForTransportID()
		if transportId == "" {
			lastErr = fmt.Errorf("failed to get transport ID after retries")
			if !lastAttempt {
				c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Msg("no transport ID, retrying...")
				time.Sleep(loadRetryDelay)
				continue
			}
			c.Log().Error().Str("Method", "Load").Msg("failed to get transport ID")
			return lastErr
		}

		if err := sendLoad(c.conn, transportId, desc); err != nil {
			lastErr = err
			if isTimeoutError(err) && !lastAttempt {
				c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Err(err).Msg("timeout during load, retrying...")
				time.Sleep(loadRetryDelay)
				continue
			}
			c.Log().Error().Str("Method", "Load").Err(err).Msg("load failed")
			return err
		}

		c.Log().Debug().Str("Method", "Load").Msg("load success")
		return nil
	}
	return lastErr
}

func (c *CastClient) waitForTransportID() string {
	for i := 0; i < 8; i++ {
		if !c.IsConnected() {
			return ""
		}

		if err := c.app.Update(); err != nil {
			c.Log().Debug().Str("Method", "Load").Int("Attempt", i+1).Err(err).Msg("app.Update retry")
			time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
			continue
		}
		app := c.app.App()
		if app != nil && app.TransportId != "" {
			c.Log().Debug().Str("Method", "Load").Str("TransportId", app.TransportId).Msg("got transport ID")
			return app.TransportId
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	return ""
}

// Status returns current playback status.
// No mutex needed - only reads from underlying library which has its own sync.
func (c *CastClient) Status() (*CastStatus, error) {
	// Update refreshes the cached status from the device.
	if err := c.app.Update(); err != nil {
		c.Log().Error().Str("Method", "Status").Err(err).Msg("app.Update failed")
		return nil, err
	}
	_, media, vol := c.app.Status()
	status := &CastStatus{}
	if vol != nil {
		status.Volume = float32(vol.Level)
		status.Muted = vol.Muted
	}
	if media != nil {
		status.PlayerState = media.PlayerState
		status.CurrentTime = media.CurrentTime
		status.ContentType = media.Media.ContentType
		status.MediaTitle = media.Media.Metadata.Title
	} else {
		status.PlayerState = "IDLE"
	}
	return status, nil
}

// Close disconnects from the Chromecast device.
func (c *CastClient) Close(stopMedia bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", "Close").Bool("StopMedia", stopMedia).Msg("closing connection")
	c.connected = false
	err := c.app.Close(stopMedia)
	if err != nil {
		c.Log().Error().Str("Method", "Close").Err(err).Msg("failed")
	}
	return err
}

// IsConnected returns whether client is connected.
func (c *CastClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Host returns the hostname of the Chromecast device.
func (c *CastClient) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// Connected and Media make CastClient usable as a coordinator session.
func (c *CastClient) Connected() bool { return c.IsConnected() }

func (c *CastClient) Media() castcoord.MediaClient { return c }

var _ castcoord.Session = (*CastClient)(nil)
