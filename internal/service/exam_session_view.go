package service

import (
	"fmt"

	"github.com/stemsi/exstem-portal/internal/model"
)

// ReviewFilter selects questions in the post-submission review list.
type ReviewFilter string

const (
	FilterAll        ReviewFilter = "all"
	FilterCorrect    ReviewFilter = "correct"
	FilterIncorrect  ReviewFilter = "incorrect"
	FilterUnanswered ReviewFilter = "unanswered"
	FilterMarked     ReviewFilter = "marked"
)

// ParseReviewFilter reads a filter name; "" means all.
func ParseReviewFilter(s string) (ReviewFilter, bool) {
	switch ReviewFilter(s) {
	case "", FilterAll:
		return FilterAll, true
	case FilterCorrect, FilterIncorrect, FilterUnanswered, FilterMarked:
		return ReviewFilter(s), true
	}
	return "", false
}

// Outcome is a question's grading after submission.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
	// OutcomeUngraded is an answered question whose correct option the
	// backend did not reveal.
	OutcomeUngraded Outcome = "ungraded"
)

// ReviewItem is one row of the review list.
type ReviewItem struct {
	Question model.Question `json:"question"`
	Selected string         `json:"selected,omitempty"`
	Correct  string         `json:"correct,omitempty"`
	Outcome  Outcome        `json:"outcome"`
	Marked   bool           `json:"marked"`
}

// Summary totals a submitted attempt.
type Summary struct {
	Total      int      `json:"total"`
	Answered   int      `json:"answered"`
	Unanswered int      `json:"unanswered"`
	Correct    int      `json:"correct"`
	Incorrect  int      `json:"incorrect"`
	Marked     int      `json:"marked"`
	Score      *float64 `json:"score,omitempty"`
	Percent    float64  `json:"percent"`
}

// Review filters the already fetched questions of a submitted attempt.
func (s *ExamSession) Review(filter ReviewFilter) ([]ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	if s.submission != Submitted {
		return nil, ErrNotSubmitted
	}

	items := make([]ReviewItem, 0, len(s.exam.Questions))
	for _, item := range s.reviewItemsLocked() {
		if matchesFilter(item, filter) {
			items = append(items, item)
		}
	}
	return items, nil
}

// Summary totals the submitted attempt.
func (s *ExamSession) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return Summary{}, err
	}
	if s.submission != Submitted {
		return Summary{}, ErrNotSubmitted
	}
	return s.summaryLocked(), nil
}

func (s *ExamSession) summaryLocked() Summary {
	sum := Summary{Total: s.exam.QuestionCount(), Score: s.result.Score}
	for _, item := range s.reviewItemsLocked() {
		switch item.Outcome {
		case OutcomeCorrect:
			sum.Correct++
		case OutcomeIncorrect:
			sum.Incorrect++
		case OutcomeUnanswered:
			sum.Unanswered++
		}
		if item.Marked {
			sum.Marked++
		}
	}
	sum.Answered = sum.Total - sum.Unanswered

	total := s.result.Total
	if total == 0 {
		total = sum.Total
	}
	switch {
	case sum.Score != nil && total > 0:
		sum.Percent = *sum.Score / float64(total) * 100
	case sum.Total > 0:
		sum.Percent = float64(sum.Correct) / float64(sum.Total) * 100
	}
	return sum
}

func (s *ExamSession) reviewItemsLocked() []ReviewItem {
	items := make([]ReviewItem, 0, len(s.exam.Questions))
	for _, q := range s.exam.Questions {
		correct := q.CorrectOption
		if c, ok := s.result.Correct[q.Number]; ok {
			correct = c
		}
		selected, answered := s.finalAnswers[q.Number]

		item := ReviewItem{
			Question: q,
			Selected: selected,
			Correct:  correct,
			Marked:   s.finalMarked[q.Number],
		}
		item.Question.CorrectOption = correct

		switch {
		case !answered:
			item.Outcome = OutcomeUnanswered
		case correct == "":
			item.Outcome = OutcomeUngraded
		case selected == correct:
			item.Outcome = OutcomeCorrect
		default:
			item.Outcome = OutcomeIncorrect
		}
		items = append(items, item)
	}
	return items
}

func matchesFilter(item ReviewItem, filter ReviewFilter) bool {
	switch filter {
	case FilterCorrect:
		return item.Outcome == OutcomeCorrect
	case FilterIncorrect:
		return item.Outcome == OutcomeIncorrect
	case FilterUnanswered:
		return item.Outcome == OutcomeUnanswered
	case FilterMarked:
		return item.Marked
	default:
		return true
	}
}

// PaletteStatus is a question's colour in the navigation palette.
type PaletteStatus string

const (
	PaletteNotVisited     PaletteStatus = "not_visited"
	PaletteNotAnswered    PaletteStatus = "not_answered"
	PaletteAnswered       PaletteStatus = "answered"
	PaletteMarked         PaletteStatus = "marked"
	PaletteAnsweredMarked PaletteStatus = "answered_marked"
)

// PaletteEntry is one button of the navigation palette.
type PaletteEntry struct {
	Number int           `json:"number"`
	Status PaletteStatus `json:"status"`
}

// View is everything a page needs to render the session.
type View struct {
	Status      LoadStatus      `json:"status"`
	Error       string          `json:"error,omitempty"`
	ExamCode    string          `json:"examCode,omitempty"`
	ExamName    string          `json:"examName,omitempty"`
	AttemptID   string          `json:"attemptId,omitempty"`
	Submission  SubmissionState `json:"submission"`
	Number      int             `json:"number,omitempty"`
	Total       int             `json:"total"`
	Question    *model.Question `json:"question,omitempty"`
	Selected    string          `json:"selected,omitempty"`
	Marked      bool            `json:"marked"`
	CanNext     bool            `json:"canNext"`
	CanPrevious bool            `json:"canPrevious"`
	Remaining   int             `json:"remaining"`
	Clock       string          `json:"clock"`
	Answered    int             `json:"answered"`
	MarkedCount int             `json:"markedCount"`
	Palette     []PaletteEntry  `json:"palette,omitempty"`
	Summary     *Summary        `json:"summary,omitempty"`
}

// View renders the current state. Correct options are hidden until the
// attempt is submitted.
func (s *ExamSession) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:     s.status,
		Error:      s.loadErr,
		Submission: s.submission,
		Remaining:  s.remaining,
		Clock:      FormatClock(s.remaining),
	}
	if s.exam == nil || s.status != LoadReady {
		return v
	}

	number := s.index + 1
	q := s.exam.Questions[s.index]
	if s.submission != Submitted {
		q.CorrectOption = ""
	} else if c, ok := s.result.Correct[number]; ok {
		q.CorrectOption = c
	}

	v.ExamCode = s.exam.Code
	v.ExamName = s.exam.Name
	v.AttemptID = s.attemptID
	v.Number = number
	v.Total = s.exam.QuestionCount()
	v.Question = &q
	v.Selected = s.answers[number]
	v.Marked = s.marked[number]
	v.CanNext = s.canNextLocked()
	v.CanPrevious = s.canPreviousLocked()
	v.Answered = len(s.answers)
	v.MarkedCount = len(s.marked)
	v.Palette = s.paletteLocked()
	if s.submission == Submitted {
		sum := s.summaryLocked()
		v.Summary = &sum
	}
	return v
}

func (s *ExamSession) paletteLocked() []PaletteEntry {
	out := make([]PaletteEntry, 0, s.exam.QuestionCount())
	for n := 1; n <= s.exam.QuestionCount(); n++ {
		_, answered := s.answers[n]
		marked := s.marked[n]

		status := PaletteNotVisited
		switch {
		case answered && marked:
			status = PaletteAnsweredMarked
		case answered:
			status = PaletteAnswered
		case marked:
			status = PaletteMarked
		case s.visited[n]:
			status = PaletteNotAnswered
		}
		out = append(out, PaletteEntry{Number: n, Status: status})
	}
	return out
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
