package castprotocol

import (
	"context"
	"time"

	"castfm.app/castfm/internal/castcoord"
)

// DefaultMonitorInterval is the pause between session health checks.
const DefaultMonitorInterval = 10 * time.Second

// Monitor watches the session health and translates it into coordinator
// lifecycle notifications: suspended when status checks start failing,
// resuming/resumed on recovery, ended once the connection is closed. It
// returns when ctx is cancelled or the session has ended.
func (c *CastClient) Monitor(ctx context.Context, interval time.Duration, notify func(castcoord.Event, castcoord.Session)) {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.IsConnected() {
			c.Log().Debug().Str("Method", "Monitor").Msg("connection closed, session ended")
			notify(castcoord.SessionEnded, nil)
			return
		}

		if _, err := c.Status(); err != nil {
			if healthy {
				healthy = false
				c.Log().Warn().Str("Method", "Monitor").Err(err).Msg("status check failed, session suspended")
				notify(castcoord.SessionSuspended, nil)
			}
			continue
		}

		if !healthy {
			healthy = true
			c.Log().Debug().Str("Method", "Monitor").Msg("status check recovered, session resumed")
			notify(castcoord.SessionResuming, c)
			notify(castcoord.SessionResumed, c)
		}
	}
}
