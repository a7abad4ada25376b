package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner owns the two timers of one exam session.
type Runner struct {
	countdown *Countdown
	autosave  *AutosaveWorker

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RunnerOptions tunes a Runner. Zero values use the defaults.
type RunnerOptions struct {
	AutosaveEvery time.Duration
	NewTicker     TickerFunc
}

// NewRunner creates a Runner for session.
func NewRunner(session Session, opts RunnerOptions, log zerolog.Logger) *Runner {
	return &Runner{
		countdown: NewCountdown(session, opts.NewTicker, log),
		autosave:  NewAutosaveWorker(session, opts.AutosaveEvery, opts.NewTicker, log),
	}
}

// Start launches both loops. Calling Start on a running Runner does nothing.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.countdown.Start(ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.autosave.Start(ctx)
	}()
}

// Stop cancels both loops and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Wait blocks until both loops have returned on their own.
func (r *Runner) Wait() {
	r.wg.Wait()
}
