package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Countdown ticks a session once per second until the attempt is over.
type Countdown struct {
	session   Session
	newTicker TickerFunc
	log       zerolog.Logger
}

// NewCountdown creates a Countdown for session.
func NewCountdown(session Session, newTicker TickerFunc, log zerolog.Logger) *Countdown {
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &Countdown{
		session:   session,
		newTicker: newTicker,
		log:       log.With().Str("component", "countdown").Logger(),
	}
}

// Start runs the loop. Call in a goroutine.
func (c *Countdown) Start(ctx context.Context) {
	t := c.newTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Msg("Countdown cancelled")
			return
		case <-t.C():
			remaining := c.session.Tick(ctx)
			if c.session.Done() {
				c.log.Debug().Int("remaining", remaining).Msg("Countdown finished")
				return
			}
			// The tick that reached zero made the one auto-submit attempt.
			if remaining == 0 {
				c.log.Debug().Msg("Clock at zero, countdown stopped")
				return
			}
		}
	}
}
