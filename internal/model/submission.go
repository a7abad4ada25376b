package model

import (
	"sort"
	"strconv"
)

// SubmitTrigger records who asked for the submission.
type SubmitTrigger string

const (
	TriggerManual SubmitTrigger = "manual"
	TriggerAuto   SubmitTrigger = "auto"
)

// SubmitRequest is the body of the final submission.
type SubmitRequest struct {
	ExamCode          string            `json:"examCode"`
	BatchName         string            `json:"batchName"`
	StudentID         string            `json:"studentId"`
	Answers           map[string]string `json:"answers"`
	ReviewedQuestions []int             `json:"reviewedQuestions"`
	AttemptID         string            `json:"attemptId"`
	Trigger           SubmitTrigger     `json:"trigger"`
}

// SubmitResult is the normalized reply to a submission. Correct is empty when
// the backend does not echo correct options.
type SubmitResult struct {
	Score   *float64       `json:"score,omitempty"`
	Total   int            `json:"total"`
	Correct map[int]string `json:"correct,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ProgressSnapshot is the best-effort in-progress save.
type ProgressSnapshot struct {
	ExamCode          string            `json:"examCode"`
	BatchName         string            `json:"batchName"`
	StudentID         string            `json:"studentId"`
	AttemptID         string            `json:"attemptId"`
	Answers           map[string]string `json:"answers"`
	ReviewedQuestions []int             `json:"reviewedQuestions"`
	RemainingSeconds  int               `json:"remainingSeconds"`
	// Version increases with every local edit. The autosaver skips a
	// version it already sent; the backend drops one older than it holds.
	Version uint64 `json:"version"`
}

// AnswersPayload converts an Answer map to its JSON object form.
func AnswersPayload(answers map[int]string) map[string]string {
	out := make(map[string]string, len(answers))
	for n, label := range answers {
		out[strconv.Itoa(n)] = label
	}
	return out
}

// MarkedList returns the flagged question numbers in ascending order.
func MarkedList(marked map[int]bool) []int {
	out := make([]int, 0, len(marked))
	for n, on := range marked {
		if on {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
