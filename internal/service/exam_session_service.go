package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/metrics"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/worker"
)

// ExamSessionService keeps one open exam session per student and the
// timers that drive it.
type ExamSessionService struct {
	backend       ExamBackend
	identity      *identity.Context
	autosaveEvery time.Duration
	newTicker     worker.TickerFunc
	log           zerolog.Logger

	mu     sync.Mutex
	active map[string]*openSession
}

type openSession struct {
	session *ExamSession
	runner  *worker.Runner
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	backend ExamBackend,
	idc *identity.Context,
	autosaveEvery time.Duration,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		backend:       backend,
		identity:      idc,
		autosaveEvery: autosaveEvery,
		log:           log,
		active:        make(map[string]*openSession),
	}
}

// SetTickerFunc replaces the timers' clock source.
func (s *ExamSessionService) SetTickerFunc(fn worker.TickerFunc) {
	s.newTicker = fn
}

// Open closes the student's current session, if any, and loads a new one.
// A failed load still leaves the session registered so the page can show
// the error and retry.
func (s *ExamSessionService) Open(ctx context.Context, studentID string, req model.LoadExamRequest) (*ExamSession, error) {
	s.Close(studentID)

	sess := NewExamSession(s.backend, s.identity, s.log.With().Str("student_id", studentID).Logger())

	s.mu.Lock()
	s.active[studentID] = &openSession{session: sess}
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	if err := sess.Load(ctx, req.ExamCode, req.BatchName); err != nil {
		return sess, err
	}
	s.startTimers(studentID, sess)
	return sess, nil
}

// Retry reloads the student's session after a failed load.
func (s *ExamSessionService) Retry(ctx context.Context, studentID string, req model.LoadExamRequest) (*ExamSession, error) {
	sess, err := s.Get(studentID)
	if err != nil {
		return s.Open(ctx, studentID, req)
	}
	if sess.View().Status != LoadFailed {
		return s.Open(ctx, studentID, req)
	}
	if err := sess.Load(ctx, req.ExamCode, req.BatchName); err != nil {
		return sess, err
	}
	s.startTimers(studentID, sess)
	return sess, nil
}

func (s *ExamSessionService) startTimers(studentID string, sess *ExamSession) {
	runner := worker.NewRunner(sess, worker.RunnerOptions{
		AutosaveEvery: s.autosaveEvery,
		NewTicker:     s.newTicker,
	}, s.log.With().Str("student_id", studentID).Logger())

	s.mu.Lock()
	defer s.mu.Unlock()
	open, ok := s.active[studentID]
	if !ok || open.session != sess {
		return
	}
	if open.runner != nil {
		open.runner.Stop()
	}
	open.runner = runner
	// Timers outlive the request that opened the session.
	runner.Start(context.Background())
}

// Get returns the student's open session.
func (s *ExamSessionService) Get(studentID string) (*ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open, ok := s.active[studentID]
	if !ok {
		return nil, ErrNoSession
	}
	return open.session, nil
}

// Submit submits the student's session manually.
func (s *ExamSessionService) Submit(ctx context.Context, studentID string) (*model.SubmitResult, error) {
	sess, err := s.Get(studentID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Submit(ctx, model.TriggerManual)
	if err != nil {
		return nil, fmt.Errorf("submit for %s: %w", studentID, err)
	}
	return res, nil
}

// Close stops the student's timers and ends the session.
func (s *ExamSessionService) Close(studentID string) {
	s.mu.Lock()
	open, ok := s.active[studentID]
	delete(s.active, studentID)
	s.mu.Unlock()

	if !ok {
		return
	}
	if open.runner != nil {
		open.runner.Stop()
	}
	open.session.Close()
	metrics.ActiveSessions.Dec()
}

// Shutdown closes every open session.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
	s.log.Info().Int("sessions", len(ids)).Msg("Exam sessions closed")
}
