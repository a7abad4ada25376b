package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/worker"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

// manualClock records every ticker the session timers ask for.
type manualClock struct {
	mu       sync.Mutex
	byPeriod map[time.Duration]*manualTicker
}

func (c *manualClock) newTicker(d time.Duration) worker.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.byPeriod[d] = t
	return t
}

func (c *manualClock) ticker(t *testing.T, d time.Duration) *manualTicker {
	t.Helper()
	var mt *manualTicker
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		mt = c.byPeriod[d]
		return mt != nil
	}, time.Second, time.Millisecond)
	return mt
}

func newSessionService(t *testing.T, backend *fakeBackend) (*ExamSessionService, *manualClock) {
	t.Helper()
	idc := identity.NewContext(identity.NewMemoryStore())
	require.NoError(t, idc.Establish(context.Background(), model.Identity{User: "Asha", UserID: "s-1", UserType: model.UserTypeStudent, Token: "t"}))

	clock := &manualClock{byPeriod: make(map[time.Duration]*manualTicker)}
	svc := NewExamSessionService(backend, idc, 30*time.Second, zerolog.Nop())
	svc.SetTickerFunc(clock.newTicker)
	t.Cleanup(svc.Shutdown)
	return svc, clock
}

func TestCloseStopsBothTimers(t *testing.T) {
	svc, clock := newSessionService(t, &fakeBackend{exam: testExam(2)})

	sess, err := svc.Open(context.Background(), "s-1", model.LoadExamRequest{ExamCode: "E1"})
	require.NoError(t, err)

	countdown := clock.ticker(t, time.Second)
	autosave := clock.ticker(t, 30*time.Second)
	countdown.ch <- time.Now()
	require.Eventually(t, func() bool { return sess.Remaining() == 59 }, time.Second, time.Millisecond)

	svc.Close("s-1")
	require.True(t, countdown.stopped.Load())
	require.True(t, autosave.stopped.Load())
	require.True(t, sess.Done())
	require.Equal(t, 59, sess.Remaining())

	_, err = svc.Get("s-1")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestCountdownEndsAfterFailedAutoSubmit(t *testing.T) {
	backend := &fakeBackend{exam: testExam(1), submitErr: ErrSessionClosed}
	svc, clock := newSessionService(t, backend)

	sess, err := svc.Open(context.Background(), "s-1", model.LoadExamRequest{ExamCode: "E1"})
	require.NoError(t, err)

	countdown := clock.ticker(t, time.Second)
	for i := 0; i < 60; i++ {
		countdown.ch <- time.Now()
	}
	require.Eventually(t, countdown.stopped.Load, time.Second, time.Millisecond)
	require.Equal(t, 1, backend.submitCount())
	require.Equal(t, NotSubmitted, sess.Submission())
}
