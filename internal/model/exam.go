package model

import "time"

// Exam is the canonical exam record every view works with. It is produced by
// the API client's normalizer and never by views directly.
type Exam struct {
	Code            string     `json:"code" binding:"required"`
	Name            string     `json:"name"`
	Batch           string     `json:"batch,omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1"`
	Questions       []Question `json:"questions" binding:"required,min=1,dive"`
}

// DurationSeconds returns the countdown's starting value.
func (e *Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}

// QuestionCount returns N; valid question numbers are 1..N.
func (e *Exam) QuestionCount() int {
	return len(e.Questions)
}

// Question returns the question with the given 1-based number.
func (e *Exam) Question(number int) (*Question, bool) {
	if number < 1 || number > len(e.Questions) {
		return nil, false
	}
	return &e.Questions[number-1], true
}

// ToSequences rekeys a number-keyed Answer map by backend sequence.
func (e *Exam) ToSequences(answers map[int]string) map[int]string {
	out := make(map[int]string, len(answers))
	for n, label := range answers {
		if q, ok := e.Question(n); ok {
			out[q.Sequence] = label
		}
	}
	return out
}

// MarksToSequences rekeys flagged question numbers by backend sequence.
func (e *Exam) MarksToSequences(marked map[int]bool) map[int]bool {
	out := make(map[int]bool, len(marked))
	for n, on := range marked {
		if q, ok := e.Question(n); ok && on {
			out[q.Sequence] = true
		}
	}
	return out
}

// FromSequences rekeys a sequence-keyed answer key by question number.
// Sequences the exam does not know are dropped.
func (e *Exam) FromSequences(bySeq map[int]string) map[int]string {
	if len(bySeq) == 0 {
		return bySeq
	}
	index := make(map[int]int, len(e.Questions))
	for i := range e.Questions {
		index[e.Questions[i].Sequence] = i + 1
	}
	out := make(map[int]string, len(bySeq))
	for seq, label := range bySeq {
		if n, ok := index[seq]; ok {
			out[n] = label
		}
	}
	return out
}

// ExamStatus mirrors the backend's exam lifecycle.
type ExamStatus string

const (
	ExamStatusDraft      ExamStatus = "DRAFT"
	ExamStatusPublished  ExamStatus = "PUBLISHED"
	ExamStatusInProgress ExamStatus = "IN_PROGRESS"
	ExamStatusCompleted  ExamStatus = "COMPLETED"
	ExamStatusArchived   ExamStatus = "ARCHIVED"
)

// ExamSummary is an exam as shown in lists (no questions).
type ExamSummary struct {
	ID              string     `json:"id,omitempty"`
	Code            string     `json:"examCode" binding:"required,min=2,max=64"`
	Name            string     `json:"examName" binding:"required,min=3,max=255"`
	Batch           string     `json:"batchName" binding:"omitempty,max=64"`
	DurationMinutes int        `json:"duration" binding:"required,min=1,max=480"`
	QuestionCount   int        `json:"questionCount"`
	Status          ExamStatus `json:"status,omitempty"`
	ScheduledStart  *time.Time `json:"scheduledStart,omitempty"`
}

// LoadExamRequest is the payload for opening an exam session.
type LoadExamRequest struct {
	ExamCode  string `json:"exam_code" binding:"required,min=1,max=64"`
	BatchName string `json:"batch_name" binding:"omitempty,max=64"`
}

// SelectOptionRequest picks an option for one question.
type SelectOptionRequest struct {
	Option string `json:"option" binding:"required"`
}

// NavigateRequest moves the session cursor: either a direction or a
// 1-based question number.
type NavigateRequest struct {
	Direction string `json:"direction" binding:"omitempty,oneof=next previous"`
	Question  int    `json:"question" binding:"omitempty,min=1"`
}
