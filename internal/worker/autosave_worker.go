package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/metrics"
)

// DefaultAutosaveInterval is used when no interval is configured.
const DefaultAutosaveInterval = 30 * time.Second

// AutosaveWorker periodically persists a session's in-progress answers.
// Saves are best-effort: failures are logged and counted, never surfaced.
type AutosaveWorker struct {
	session   Session
	interval  time.Duration
	timeout   time.Duration
	newTicker TickerFunc
	log       zerolog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(session Session, interval time.Duration, newTicker TickerFunc, log zerolog.Logger) *AutosaveWorker {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &AutosaveWorker{
		session:   session,
		interval:  interval,
		timeout:   interval,
		newTicker: newTicker,
		log:       log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine. It returns once the
// context is cancelled or the attempt is over, after any save in flight.
func (w *AutosaveWorker) Start(ctx context.Context) {
	t := w.newTicker(w.interval)
	defer t.Stop()
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if w.session.Done() {
				return
			}
			w.saveAsync(ctx)
		}
	}
}

// saveAsync starts one save unless the previous one is still running.
func (w *AutosaveWorker) saveAsync(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.log.Debug().Msg("Previous save still in flight, skipping")
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.inFlight.Store(false)

		saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()

		saved, err := w.session.SaveProgress(saveCtx)
		switch {
		case err != nil:
			metrics.AutosaveTotal.WithLabelValues("failed").Inc()
			w.log.Warn().Err(err).Msg("Auto-save failed")
		case saved:
			metrics.AutosaveTotal.WithLabelValues("saved").Inc()
			w.log.Debug().Msg("Progress saved")
		}
	}()
}
