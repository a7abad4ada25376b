package worker

import (
	"context"
	"time"
)

// Session is the exam session state the timers drive.
type Session interface {
	// Tick advances the countdown one second and returns what is left. The
	// tick that returns zero has already attempted the auto-submit.
	Tick(ctx context.Context) int
	// SaveProgress sends an in-progress snapshot if there is one.
	SaveProgress(ctx context.Context) (bool, error)
	// Done reports that the attempt is over and the timers may stop.
	Done() bool
}

// Ticker is the part of time.Ticker the loops use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}
