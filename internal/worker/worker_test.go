package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// tickers hands out one fake ticker per requested period.
type tickers struct {
	mu  sync.Mutex
	all map[time.Duration]*fakeTicker
}

func newTickers() *tickers {
	return &tickers{all: make(map[time.Duration]*fakeTicker)}
}

func (ts *tickers) new(d time.Duration) Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	ts.all[d] = t
	return t
}

func (ts *tickers) get(t *testing.T, d time.Duration) *fakeTicker {
	t.Helper()
	var ft *fakeTicker
	require.Eventually(t, func() bool {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		ft = ts.all[d]
		return ft != nil
	}, time.Second, time.Millisecond)
	return ft
}

type fakeSession struct {
	mu        sync.Mutex
	remaining int
	done      bool
	// submitFails keeps the attempt open after the clock runs out.
	submitFails bool
	ticks       int
	calls       int
	saves       int
	saveErr     error
	saveGate    chan struct{}
}

func (f *fakeSession) Tick(context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	if f.remaining > 0 {
		f.remaining--
	}
	if f.remaining == 0 && !f.submitFails {
		f.done = true
	}
	return f.remaining
}

func (f *fakeSession) SaveProgress(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.saveGate != nil {
		select {
		case <-f.saveGate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return f.saveErr == nil, f.saveErr
}

func (f *fakeSession) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakeSession) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks, f.saves
}

func TestCountdownStopsWhenDone(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 3}
	c := NewCountdown(sess, ts.new, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(finished)
	}()

	ft := ts.get(t, time.Second)
	for i := 0; i < 3; i++ {
		ft.ch <- time.Now()
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop after the attempt ended")
	}
	ticks, _ := sess.counts()
	require.Equal(t, 3, ticks)
	require.True(t, ft.stopped.Load())
}

func TestCountdownStopsAtZeroAfterFailedSubmit(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 2, submitFails: true}
	c := NewCountdown(sess, ts.new, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(finished)
	}()

	ft := ts.get(t, time.Second)
	ft.ch <- time.Now()
	ft.ch <- time.Now()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("countdown kept running at zero")
	}
	require.False(t, sess.Done())
	ticks, _ := sess.counts()
	require.Equal(t, 2, ticks)
}

func TestCountdownCancelled(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 100}
	c := NewCountdown(sess, ts.new, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(finished)
	}()

	ft := ts.get(t, time.Second)
	ft.ch <- time.Now()
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("countdown ignored cancellation")
	}
	ticks, _ := sess.counts()
	require.Equal(t, 1, ticks)
}

func TestAutosaveFailureIsSwallowed(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 100, saveErr: errors.New("backend down")}
	w := NewAutosaveWorker(sess, 5*time.Second, ts.new, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(finished)
	}()

	ft := ts.get(t, 5*time.Second)
	ft.ch <- time.Now()
	require.Eventually(t, func() bool {
		_, saves := sess.counts()
		return saves == 1 && !w.inFlight.Load()
	}, time.Second, time.Millisecond)

	ft.ch <- time.Now()
	require.Eventually(t, func() bool {
		_, saves := sess.counts()
		return saves == 2
	}, time.Second, time.Millisecond)

	cancel()
	<-finished
}

func TestAutosaveSkipsWhileSaveInFlight(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 100, saveGate: make(chan struct{})}
	w := NewAutosaveWorker(sess, time.Minute, ts.new, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(finished)
	}()

	ft := ts.get(t, time.Minute)
	ft.ch <- time.Now()
	require.Eventually(t, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.calls == 1
	}, time.Second, time.Millisecond)
	ft.ch <- time.Now()
	ft.ch <- time.Now()

	cancel()
	<-finished

	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Equal(t, 1, sess.calls)
	require.Zero(t, sess.saves)
}

func TestRunnerStopWaitsForLoops(t *testing.T) {
	ts := newTickers()
	sess := &fakeSession{remaining: 100}
	r := NewRunner(sess, RunnerOptions{AutosaveEvery: 10 * time.Second, NewTicker: ts.new}, zerolog.Nop())

	r.Start(context.Background())
	r.Start(context.Background())

	countdown := ts.get(t, time.Second)
	ts.get(t, 10*time.Second)
	countdown.ch <- time.Now()
	countdown.ch <- time.Now()

	r.Stop()
	ticks, _ := sess.counts()
	require.Equal(t, 2, ticks)
	require.True(t, countdown.stopped.Load())
}
