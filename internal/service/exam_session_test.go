package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	exam      *model.Exam
	getErr    error
	submitErr error
	// submitGate, when set, holds SubmitExam until it is closed.
	submitGate chan struct{}
	result     *model.SubmitResult
	submits    []model.SubmitRequest
	saves      []model.ProgressSnapshot
}

func (f *fakeBackend) GetExam(_ context.Context, code, _ string) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	exam := *f.exam
	exam.Code = code
	return &exam, nil
}

func (f *fakeBackend) SubmitExam(_ context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.result != nil {
		res := *f.result
		return &res, nil
	}
	return &model.SubmitResult{}, nil
}

func (f *fakeBackend) SaveProgress(_ context.Context, snap model.ProgressSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, snap)
	return nil
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func testExam(questions int) *model.Exam {
	exam := &model.Exam{Name: "Mock", Batch: "B1", DurationMinutes: 1}
	for i := 1; i <= questions; i++ {
		q := model.Question{Number: i, Sequence: i, Text: model.Text{Primary: "question"}}
		for _, l := range model.OptionLabels {
			q.Options = append(q.Options, model.Option{Label: l})
		}
		exam.Questions = append(exam.Questions, q)
	}
	return exam
}

// loaded returns a session whose clock starts at seconds.
func loaded(t *testing.T, backend *fakeBackend, seconds int) *ExamSession {
	t.Helper()
	idc := identity.NewContext(identity.NewMemoryStore())
	require.NoError(t, idc.Establish(context.Background(), model.Identity{User: "Asha", UserID: "s-1", UserType: model.UserTypeStudent, Token: "t"}))

	s := NewExamSession(backend, idc, zerolog.Nop())
	require.NoError(t, s.Load(context.Background(), "E1", "B1"))
	s.mu.Lock()
	s.remaining = seconds
	s.mu.Unlock()
	return s
}

func TestLoadInitializesClock(t *testing.T) {
	backend := &fakeBackend{exam: testExam(3)}
	s := NewExamSession(backend, nil, zerolog.Nop())

	require.NoError(t, s.Load(context.Background(), "E1", "B1"))
	v := s.View()
	require.Equal(t, LoadReady, v.Status)
	require.Equal(t, 60, v.Remaining)
	require.Equal(t, "01:00", v.Clock)
	require.Equal(t, 1, v.Number)
	require.Equal(t, NotSubmitted, v.Submission)
	require.NotEmpty(t, v.AttemptID)
}

func TestLoadFailureAllowsRetry(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2), getErr: client.ErrUnusableExam}
	s := NewExamSession(backend, nil, zerolog.Nop())

	err := s.Load(context.Background(), "E1", "")
	require.ErrorIs(t, err, client.ErrUnusableExam)
	v := s.View()
	require.Equal(t, LoadFailed, v.Status)
	require.NotEmpty(t, v.Error)
	require.ErrorIs(t, s.SelectOption(1, "A"), ErrNoSession)

	backend.mu.Lock()
	backend.getErr = nil
	backend.mu.Unlock()

	require.NoError(t, s.Load(context.Background(), "E1", ""))
	require.Equal(t, LoadReady, s.View().Status)
	require.Empty(t, s.View().Error)
}

func TestSelectOptionIsolatedPerQuestion(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(5)}, 60)

	require.NoError(t, s.SelectOption(2, "C"))
	require.NoError(t, s.SelectOption(4, "a"))
	before := s.Answers()

	for _, label := range model.OptionLabels {
		require.NoError(t, s.SelectOption(3, label))
		after := s.Answers()
		for q, v := range before {
			require.Equal(t, v, after[q], "question %d changed", q)
		}
	}
	require.Equal(t, map[int]string{2: "C", 3: "D", 4: "A"}, s.Answers())
}

func TestSelectOptionOverwrites(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)

	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectOption(1, "B"))
	require.NoError(t, s.SelectOption(1, "B"))
	require.Equal(t, map[int]string{1: "B"}, s.Answers())
}

func TestSelectOptionRejectsBadInput(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)

	require.ErrorIs(t, s.SelectOption(0, "A"), ErrQuestionOutOfRange)
	require.ErrorIs(t, s.SelectOption(3, "A"), ErrQuestionOutOfRange)
	require.ErrorIs(t, s.SelectOption(1, "E"), ErrInvalidOption)
	require.Empty(t, s.Answers())
}

func TestSelectOptionNoOpAfterSubmit(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)
	require.NoError(t, s.SelectOption(1, "A"))

	_, err := s.Submit(context.Background(), model.TriggerManual)
	require.NoError(t, err)

	require.NoError(t, s.SelectOption(1, "D"))
	require.NoError(t, s.SelectOption(2, "B"))
	require.Equal(t, map[int]string{1: "A"}, s.Answers())

	_, err = s.Submit(context.Background(), model.TriggerManual)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestNavigationBounds(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(3)}, 60)

	require.False(t, s.CanPrevious())
	require.True(t, s.CanNext())
	moved, err := s.Previous()
	require.NoError(t, err)
	require.False(t, moved)

	require.NoError(t, s.SelectOption(1, "B"))
	for i := 0; i < 2; i++ {
		moved, err = s.Next()
		require.NoError(t, err)
		require.True(t, moved)
	}
	require.False(t, s.CanNext())
	require.True(t, s.CanPrevious())
	moved, err = s.Next()
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, 3, s.View().Number)

	require.NoError(t, s.GoTo(1))
	require.Equal(t, "B", s.View().Selected)
	require.ErrorIs(t, s.GoTo(4), ErrQuestionOutOfRange)
}

func TestToggleMark(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)

	on, err := s.ToggleMark(2)
	require.NoError(t, err)
	require.True(t, on)
	on, err = s.ToggleMark(2)
	require.NoError(t, err)
	require.False(t, on)

	_, err = s.ToggleMark(9)
	require.ErrorIs(t, err, ErrQuestionOutOfRange)
}

func TestTickSubmitsExactlyOnce(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2)}
	s := loaded(t, backend, 3)

	for i := 0; i < 10; i++ {
		s.Tick(context.Background())
	}
	require.Equal(t, 1, backend.submitCount())
	require.Equal(t, model.TriggerAuto, backend.submits[0].Trigger)
	require.Equal(t, Submitted, s.Submission())
	require.Equal(t, 0, s.Remaining())
}

func TestFailedAutoSubmitIsNotRetried(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2), submitErr: &client.APIError{Status: 503, Message: "down"}}
	s := loaded(t, backend, 2)
	require.NoError(t, s.SelectOption(2, "B"))

	for i := 0; i < 8; i++ {
		s.Tick(context.Background())
	}
	require.Equal(t, 1, backend.submitCount())
	require.Equal(t, model.TriggerAuto, backend.submits[0].Trigger)
	require.Equal(t, NotSubmitted, s.Submission())
	require.Equal(t, 0, s.Remaining())
	require.False(t, s.Done())

	backend.mu.Lock()
	backend.submitErr = nil
	backend.mu.Unlock()
	_, err := s.Submit(context.Background(), model.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 2, backend.submitCount())
}

func TestTickRacingManualSubmit(t *testing.T) {
	for run := 0; run < 50; run++ {
		backend := &fakeBackend{exam: testExam(2), submitGate: make(chan struct{})}
		s := loaded(t, backend, 1)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Tick(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), model.TriggerManual)
			errs <- err
		}()

		require.Eventually(t, func() bool { return s.Submission() == Submitting }, time.Second, time.Millisecond)
		close(backend.submitGate)
		wg.Wait()
		close(errs)

		require.Equal(t, 1, backend.submitCount(), "run %d", run)
		require.Equal(t, Submitted, s.Submission())
		for err := range errs {
			if err != nil {
				require.True(t, errors.Is(err, ErrSubmitInProgress) || errors.Is(err, ErrAlreadySubmitted), err)
			}
		}
	}
}

func TestSubmitFailureLeavesSessionEditable(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2), submitErr: &client.APIError{Status: 500, Message: "boom"}}
	s := loaded(t, backend, 60)
	require.NoError(t, s.SelectOption(1, "A"))

	_, err := s.Submit(context.Background(), model.TriggerManual)
	require.Error(t, err)
	require.Equal(t, NotSubmitted, s.Submission())

	require.NoError(t, s.SelectOption(1, "C"))
	backend.mu.Lock()
	backend.submitErr = nil
	backend.mu.Unlock()

	_, err = s.Submit(context.Background(), model.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"1": "C"}, backend.submits[1].Answers)
}

func TestSelectOptionWhileSubmitting(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2), submitGate: make(chan struct{})}
	s := loaded(t, backend, 60)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Submit(context.Background(), model.TriggerManual)
	}()
	require.Eventually(t, func() bool { return s.Submission() == Submitting }, time.Second, time.Millisecond)

	require.ErrorIs(t, s.SelectOption(1, "A"), ErrSubmitInProgress)
	_, ok := s.Snapshot()
	require.False(t, ok)

	close(backend.submitGate)
	<-done
}

func TestExampleScenario(t *testing.T) {
	backend := &fakeBackend{
		exam:   testExam(3),
		result: &model.SubmitResult{Correct: map[int]string{1: "B", 2: "A", 3: "D"}},
	}
	s := loaded(t, backend, 5)
	ctx := context.Background()

	s.Tick(ctx)
	require.NoError(t, s.SelectOption(1, "B"))
	s.Tick(ctx)
	_, err := s.ToggleMark(2)
	require.NoError(t, err)
	s.Tick(ctx)
	s.Tick(ctx)
	require.Equal(t, NotSubmitted, s.Submission())
	s.Tick(ctx)

	require.Equal(t, 1, backend.submitCount())
	sent := backend.submits[0]
	require.Equal(t, map[string]string{"1": "B"}, sent.Answers)
	require.Equal(t, []int{2}, sent.ReviewedQuestions)
	require.Equal(t, "s-1", sent.StudentID)
	require.Equal(t, "E1", sent.ExamCode)
	require.Equal(t, "B1", sent.BatchName)

	unanswered, err := s.Review(FilterUnanswered)
	require.NoError(t, err)
	require.Len(t, unanswered, 2)
	require.Equal(t, 2, unanswered[0].Question.Number)
	require.Equal(t, 3, unanswered[1].Question.Number)

	correct, err := s.Review(FilterCorrect)
	require.NoError(t, err)
	require.Len(t, correct, 1)
	require.Equal(t, 1, correct[0].Question.Number)

	incorrect, err := s.Review(FilterIncorrect)
	require.NoError(t, err)
	require.Empty(t, incorrect)

	marked, err := s.Review(FilterMarked)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	require.Equal(t, 2, marked[0].Question.Number)

	all, err := s.Review(FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)

	sum, err := s.Summary()
	require.NoError(t, err)
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 1, sum.Answered)
	require.Equal(t, 2, sum.Unanswered)
	require.Equal(t, 1, sum.Correct)
	require.Zero(t, sum.Incorrect)
	require.Equal(t, 1, sum.Marked)
	require.Nil(t, sum.Score)
	require.InDelta(t, 33.33, sum.Percent, 0.01)
}

func TestSubmitUsesBackendSequences(t *testing.T) {
	exam := testExam(3)
	for i := range exam.Questions {
		exam.Questions[i].Sequence = i
	}
	backend := &fakeBackend{
		exam:   exam,
		result: &model.SubmitResult{Correct: map[int]string{0: "A", 1: "B", 2: "C"}},
	}
	s := loaded(t, backend, 60)

	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectOption(2, "D"))
	_, err := s.ToggleMark(3)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), model.TriggerManual)
	require.NoError(t, err)

	require.Equal(t, map[string]string{"0": "A", "1": "D"}, backend.submits[0].Answers)
	require.Equal(t, []int{2}, backend.submits[0].ReviewedQuestions)

	items, err := s.Review(FilterAll)
	require.NoError(t, err)
	require.Equal(t, "A", items[0].Correct)
	require.Equal(t, OutcomeCorrect, items[0].Outcome)
	require.Equal(t, "B", items[1].Correct)
	require.Equal(t, OutcomeIncorrect, items[1].Outcome)
	require.Equal(t, "C", items[2].Correct)
	require.Equal(t, OutcomeUnanswered, items[2].Outcome)
}

func TestReviewBeforeSubmit(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)
	_, err := s.Review(FilterAll)
	require.ErrorIs(t, err, ErrNotSubmitted)
}

func TestViewHidesCorrectOptionUntilSubmitted(t *testing.T) {
	exam := testExam(2)
	exam.Questions[0].CorrectOption = "C"
	s := loaded(t, &fakeBackend{exam: exam}, 61)

	v := s.View()
	require.Empty(t, v.Question.CorrectOption)
	require.Equal(t, "01:01", v.Clock)

	_, err := s.Submit(context.Background(), model.TriggerManual)
	require.NoError(t, err)
	v = s.View()
	require.Equal(t, "C", v.Question.CorrectOption)
	require.NotNil(t, v.Summary)
}

func TestPaletteStatuses(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(5)}, 60)

	require.NoError(t, s.SelectOption(1, "A"))
	_, _ = s.ToggleMark(1)
	require.NoError(t, s.GoTo(2))
	require.NoError(t, s.SelectOption(3, "B"))
	_, _ = s.ToggleMark(4)

	want := []PaletteStatus{PaletteAnsweredMarked, PaletteNotAnswered, PaletteAnswered, PaletteMarked, PaletteNotVisited}
	for i, e := range s.View().Palette {
		require.Equal(t, i+1, e.Number)
		require.Equal(t, want[i], e.Status, "question %d", e.Number)
	}
}

func TestSnapshotVersioning(t *testing.T) {
	backend := &fakeBackend{exam: testExam(2)}
	s := loaded(t, backend, 60)
	ctx := context.Background()

	saved, err := s.SaveProgress(ctx)
	require.NoError(t, err)
	require.False(t, saved)

	require.NoError(t, s.SelectOption(1, "A"))
	saved, err = s.SaveProgress(ctx)
	require.NoError(t, err)
	require.True(t, saved)
	require.Equal(t, map[string]string{"1": "A"}, backend.saves[0].Answers)
	require.NotEmpty(t, backend.saves[0].AttemptID)
	require.NotZero(t, backend.saves[0].Version)
	body, err := json.Marshal(backend.saves[0])
	require.NoError(t, err)
	require.Contains(t, string(body), fmt.Sprintf(`"version":%d`, backend.saves[0].Version))

	require.NoError(t, s.SelectOption(2, "C"))
	saved, err = s.SaveProgress(ctx)
	require.NoError(t, err)
	require.True(t, saved)
	require.Greater(t, backend.saves[1].Version, backend.saves[0].Version)

	saved, err = s.SaveProgress(ctx)
	require.NoError(t, err)
	require.False(t, saved)

	_, err = s.Submit(ctx, model.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, s.SelectOption(2, "B"))
	_, ok := s.Snapshot()
	require.False(t, ok)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := loaded(t, &fakeBackend{exam: testExam(2)}, 60)
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.SelectOption(2, "D"))
	s.Tick(context.Background())

	e := <-events
	require.Equal(t, EventAnswer, e.Type)
	require.Equal(t, 2, e.Question)
	require.Equal(t, "D", e.Option)

	e = <-events
	require.Equal(t, EventTick, e.Type)
	require.Equal(t, 59, e.Remaining)
	require.Equal(t, "00:59", e.Clock)

	s.Close()
	_, open := <-events
	require.False(t, open)
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "00:00", FormatClock(-3))
	require.Equal(t, "00:05", FormatClock(5))
	require.Equal(t, "90:00", FormatClock(5400))
}

func TestDescribe(t *testing.T) {
	status, code, _ := Describe(errors.Join(errors.New("x"), ErrSubmitInProgress))
	require.Equal(t, 409, status)
	require.Equal(t, "SUBMIT_IN_PROGRESS", string(code))
	require.NotEmpty(t, UserMessage(client.ErrUnreachable))
}
