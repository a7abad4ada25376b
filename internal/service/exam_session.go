package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/metrics"
	"github.com/stemsi/exstem-portal/internal/model"
)

// ExamBackend is the part of the API client an exam session needs.
type ExamBackend interface {
	GetExam(ctx context.Context, code, batch string) (*model.Exam, error)
	SubmitExam(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error)
	SaveProgress(ctx context.Context, snap model.ProgressSnapshot) error
}

// LoadStatus tracks the exam fetch.
type LoadStatus string

const (
	LoadIdle    LoadStatus = "idle"
	LoadLoading LoadStatus = "loading"
	LoadReady   LoadStatus = "loaded"
	LoadFailed  LoadStatus = "load_failed"
)

// SubmissionState is the three-state submission flag. Transitions only go
// not_submitted -> submitting -> submitted, or submitting -> not_submitted
// when the backend rejects the submission.
type SubmissionState string

const (
	NotSubmitted SubmissionState = "not_submitted"
	Submitting   SubmissionState = "submitting"
	Submitted    SubmissionState = "submitted"
)

// ExamSession is one learner's exam-taking state. All methods are safe for
// concurrent use; backend calls are made without holding the lock.
type ExamSession struct {
	backend  ExamBackend
	identity *identity.Context
	log      zerolog.Logger

	mu      sync.Mutex
	closed  bool
	loadSeq uint64
	status  LoadStatus
	loadErr string

	exam      *model.Exam
	attemptID string
	studentID string

	answers map[int]string
	marked  map[int]bool
	visited map[int]bool
	index   int

	remaining       int
	submission      SubmissionState
	autoSubmitFired bool

	// Frozen at the moment the submission succeeded.
	result        *model.SubmitResult
	finalAnswers  map[int]string
	finalMarked   map[int]bool
	version       uint64
	savedVersion  uint64
	subscribers   map[int]chan Event
	nextSubscribe int
}

// NewExamSession creates an idle session.
func NewExamSession(backend ExamBackend, idc *identity.Context, log zerolog.Logger) *ExamSession {
	return &ExamSession{
		backend:     backend,
		identity:    idc,
		log:         log.With().Str("component", "exam_session").Logger(),
		status:      LoadIdle,
		submission:  NotSubmitted,
		subscribers: make(map[int]chan Event),
	}
}

// Load fetches the exam and starts a fresh attempt. On failure the session
// keeps a human-readable error and Load may simply be called again.
func (s *ExamSession) Load(ctx context.Context, code, batch string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.submission == Submitting {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.loadSeq++
	seq := s.loadSeq
	s.status = LoadLoading
	s.loadErr = ""
	s.mu.Unlock()

	studentID := ""
	if s.identity != nil {
		id, err := s.identity.Current(ctx)
		if err != nil {
			return s.failLoad(seq, fmt.Errorf("read identity: %w", err))
		}
		studentID = id.UserID
	}

	exam, err := s.backend.GetExam(ctx, code, batch)
	if err != nil {
		return s.failLoad(seq, err)
	}

	s.mu.Lock()
	if seq != s.loadSeq || s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.exam = exam
	s.attemptID = uuid.New().String()
	s.studentID = studentID
	s.answers = make(map[int]string)
	s.marked = make(map[int]bool)
	s.visited = map[int]bool{1: true}
	s.index = 0
	s.remaining = exam.DurationSeconds()
	s.submission = NotSubmitted
	s.autoSubmitFired = false
	s.result = nil
	s.finalAnswers = nil
	s.finalMarked = nil
	s.version = 0
	s.savedVersion = 0
	s.status = LoadReady
	attemptID := s.attemptID
	s.emitLocked(Event{Type: EventLoaded, Remaining: s.remaining, Question: 1})
	s.mu.Unlock()

	s.log.Info().
		Str("exam_code", exam.Code).
		Str("attempt_id", attemptID).
		Int("questions", exam.QuestionCount()).
		Int("duration_seconds", exam.DurationSeconds()).
		Msg("Exam loaded")
	return nil
}

func (s *ExamSession) failLoad(seq uint64, err error) error {
	s.mu.Lock()
	if seq == s.loadSeq {
		s.status = LoadFailed
		s.loadErr = UserMessage(err)
		s.emitLocked(Event{Type: EventLoadFailed, Message: s.loadErr})
	}
	s.mu.Unlock()

	s.log.Warn().Err(err).Msg("Exam load failed")
	return fmt.Errorf("load exam: %w", err)
}

// SelectOption records label as the answer to question q. Selecting the
// same label again changes nothing. Once submitted this is a no-op.
func (s *ExamSession) SelectOption(q int, label string) error {
	label = strings.ToUpper(strings.TrimSpace(label))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}
	switch s.submission {
	case Submitted:
		return nil
	case Submitting:
		return ErrSubmitInProgress
	}
	if q < 1 || q > s.exam.QuestionCount() {
		return ErrQuestionOutOfRange
	}
	if !model.ValidOption(label) {
		return ErrInvalidOption
	}

	if s.answers[q] == label {
		return nil
	}
	s.answers[q] = label
	s.visited[q] = true
	s.version++
	s.emitLocked(Event{Type: EventAnswer, Question: q, Option: label})
	return nil
}

// ToggleMark flips the review flag of question q and returns the new value.
func (s *ExamSession) ToggleMark(q int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return false, err
	}
	if q < 1 || q > s.exam.QuestionCount() {
		return false, ErrQuestionOutOfRange
	}
	switch s.submission {
	case Submitted:
		return s.marked[q], nil
	case Submitting:
		return s.marked[q], ErrSubmitInProgress
	}

	if s.marked[q] {
		delete(s.marked, q)
	} else {
		s.marked[q] = true
	}
	s.version++
	s.emitLocked(Event{Type: EventMark, Question: q, Marked: s.marked[q]})
	return s.marked[q], nil
}

// Next moves forward one question. It reports false at the last question.
func (s *ExamSession) Next() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return false, err
	}
	if !s.canNextLocked() {
		return false, nil
	}
	s.moveLocked(s.index + 1)
	return true, nil
}

// Previous moves back one question. It reports false at the first question.
func (s *ExamSession) Previous() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return false, err
	}
	if !s.canPreviousLocked() {
		return false, nil
	}
	s.moveLocked(s.index - 1)
	return true, nil
}

// GoTo jumps to question q.
func (s *ExamSession) GoTo(q int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	if q < 1 || q > s.exam.QuestionCount() {
		return ErrQuestionOutOfRange
	}
	s.moveLocked(q - 1)
	return nil
}

// CanNext reports whether Next would move.
func (s *ExamSession) CanNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam != nil && s.canNextLocked()
}

// CanPrevious reports whether Previous would move.
func (s *ExamSession) CanPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam != nil && s.canPreviousLocked()
}

func (s *ExamSession) canNextLocked() bool {
	return s.index < s.exam.QuestionCount()-1
}

func (s *ExamSession) canPreviousLocked() bool {
	return s.index > 0
}

func (s *ExamSession) moveLocked(index int) {
	s.index = index
	s.visited[index+1] = true
	s.emitLocked(Event{Type: EventNavigate, Question: index + 1})
}

// Submit sends every collected answer. Only one submission can be in flight;
// a second caller gets ErrSubmitInProgress, and any caller after success
// gets ErrAlreadySubmitted. A failed submission leaves the session editable.
func (s *ExamSession) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.SubmitResult, error) {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	switch s.submission {
	case Submitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case Submitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	s.submission = Submitting
	if trigger == model.TriggerAuto {
		s.autoSubmitFired = true
	}

	answers := copyAnswers(s.answers)
	marked := copyMarks(s.marked)
	req := model.SubmitRequest{
		ExamCode:          s.exam.Code,
		BatchName:         s.exam.Batch,
		StudentID:         s.studentID,
		Answers:           model.AnswersPayload(s.exam.ToSequences(answers)),
		ReviewedQuestions: model.MarkedList(s.exam.MarksToSequences(marked)),
		AttemptID:         s.attemptID,
		Trigger:           trigger,
	}
	s.emitLocked(Event{Type: EventSubmitting, Trigger: trigger})
	s.mu.Unlock()

	res, err := s.backend.SubmitExam(context.WithoutCancel(ctx), req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		metrics.SubmissionTotal.WithLabelValues(string(trigger), "failed").Inc()
		s.submission = NotSubmitted
		msg := UserMessage(err)
		s.emitLocked(Event{Type: EventSubmitFailed, Trigger: trigger, Message: msg})
		s.log.Warn().Err(err).Str("attempt_id", req.AttemptID).Str("trigger", string(trigger)).Msg("Submission failed")
		return nil, fmt.Errorf("submit exam: %w", err)
	}

	if res == nil {
		res = &model.SubmitResult{}
	}
	if res.Total == 0 {
		res.Total = s.exam.QuestionCount()
	}
	res.Correct = s.exam.FromSequences(res.Correct)
	metrics.SubmissionTotal.WithLabelValues(string(trigger), "ok").Inc()
	s.submission = Submitted
	s.result = res
	s.finalAnswers = answers
	s.finalMarked = marked
	s.emitLocked(Event{Type: EventSubmitted, Trigger: trigger})

	s.log.Info().
		Str("attempt_id", req.AttemptID).
		Str("trigger", string(trigger)).
		Int("answered", len(answers)).
		Msg("Exam submitted")
	return res, nil
}

// Tick advances the countdown by one second. When the clock reaches zero it
// submits exactly once for the attempt, no matter how many ticks follow.
func (s *ExamSession) Tick(ctx context.Context) int {
	s.mu.Lock()
	if s.exam == nil || s.closed || s.status != LoadReady || s.submission != NotSubmitted {
		remaining := s.remaining
		s.mu.Unlock()
		return remaining
	}
	if s.remaining > 0 {
		s.remaining--
		s.emitLocked(Event{Type: EventTick, Remaining: s.remaining})
	}
	remaining := s.remaining
	fire := remaining == 0 && !s.autoSubmitFired
	if fire {
		s.autoSubmitFired = true
	}
	s.mu.Unlock()

	if fire {
		s.log.Info().Msg("Time is up, submitting")
		if _, err := s.Submit(ctx, model.TriggerAuto); err != nil {
			s.log.Warn().Err(err).Msg("Auto-submit did not complete")
		}
	}
	return remaining
}

// Remaining returns the seconds left on the clock.
func (s *ExamSession) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Submission returns the current submission state.
func (s *ExamSession) Submission() SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submission
}

// Answers returns a copy of the Answer map.
func (s *ExamSession) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAnswers(s.answers)
}

// Snapshot returns the in-progress state for auto-save. ok is false when
// there is nothing new to save or the attempt is no longer editable.
func (s *ExamSession) Snapshot() (model.ProgressSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exam == nil || s.closed || s.submission != NotSubmitted || s.version == s.savedVersion {
		return model.ProgressSnapshot{}, false
	}
	return model.ProgressSnapshot{
		ExamCode:          s.exam.Code,
		BatchName:         s.exam.Batch,
		StudentID:         s.studentID,
		AttemptID:         s.attemptID,
		Answers:           model.AnswersPayload(s.exam.ToSequences(s.answers)),
		ReviewedQuestions: model.MarkedList(s.exam.MarksToSequences(s.marked)),
		RemainingSeconds:  s.remaining,
		Version:           s.version,
	}, true
}

// MarkSaved records that the snapshot at version reached the backend.
func (s *ExamSession) MarkSaved(attemptID string, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attemptID == s.attemptID && version > s.savedVersion {
		s.savedVersion = version
	}
}

// SaveProgress sends a snapshot if there is one. Used by the auto-saver.
func (s *ExamSession) SaveProgress(ctx context.Context) (bool, error) {
	snap, ok := s.Snapshot()
	if !ok {
		return false, nil
	}
	if err := s.backend.SaveProgress(ctx, snap); err != nil {
		return false, err
	}
	s.MarkSaved(snap.AttemptID, snap.Version)
	return true, nil
}

// Done reports whether the timers have nothing left to do.
func (s *ExamSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.submission == Submitted
}

// Close ends the session and its event streams.
func (s *ExamSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *ExamSession) readyLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.exam == nil || s.status != LoadReady {
		return ErrNoSession
	}
	return nil
}

func copyAnswers(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyMarks(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}
