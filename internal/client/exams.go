package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stemsi/exstem-portal/internal/model"
)

// raw sends req and returns the envelope's data (or the bare body).
func (c *Client) raw(ctx context.Context, req request) (json.RawMessage, error) {
	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var data json.RawMessage
	if err := decodeData(body, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetExam fetches an exam with its questions, normalized and validated.
func (c *Client) GetExam(ctx context.Context, code, batch string) (*model.Exam, error) {
	q := url.Values{}
	if batch != "" {
		q.Set("batch", batch)
	}

	data, err := c.raw(ctx, request{method: http.MethodGet, path: "/exams/" + url.PathEscape(code), query: q})
	if err != nil {
		return nil, fmt.Errorf("get exam %s: %w", code, err)
	}
	exam, err := NormalizeExam(data, code, batch)
	if err != nil {
		return nil, fmt.Errorf("get exam %s: %w", code, err)
	}
	return exam, nil
}

// ListExams returns exam summaries, optionally filtered by code.
func (c *Client) ListExams(ctx context.Context, code string) ([]model.ExamSummary, error) {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}

	var out []model.ExamSummary
	if err := c.cachedList(ctx, "exams", "/exams", q, &out); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return out, nil
}

// SubmitExam sends the final answers and normalizes the reply.
func (c *Client) SubmitExam(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	data, err := c.raw(ctx, request{method: http.MethodPost, path: "/exams/submit", body: req})
	if err != nil {
		return nil, fmt.Errorf("submit exam %s: %w", req.ExamCode, err)
	}
	res, err := NormalizeSubmitResult(data)
	if err != nil {
		return nil, fmt.Errorf("submit exam %s: %w", req.ExamCode, err)
	}
	c.invalidate(ctx, "student")
	return res, nil
}

// SaveProgress persists an in-progress snapshot. Callers treat failure as
// non-fatal.
func (c *Client) SaveProgress(ctx context.Context, snap model.ProgressSnapshot) error {
	if err := c.do(ctx, request{method: http.MethodPost, path: "/exams/save-progress", body: snap}, nil); err != nil {
		return fmt.Errorf("save progress %s: %w", snap.ExamCode, err)
	}
	return nil
}

// ListStudentExams returns the exams a student has access to.
func (c *Client) ListStudentExams(ctx context.Context, studentID string) ([]model.ExamSummary, error) {
	var out []model.ExamSummary
	if err := c.cachedList(ctx, "student", studentPath(studentID, "exams"), nil, &out); err != nil {
		return nil, fmt.Errorf("list student exams: %w", err)
	}
	return out, nil
}

// GetAnalytics returns a student's performance summary.
func (c *Client) GetAnalytics(ctx context.Context, studentID string) (*model.Analytics, error) {
	var out model.Analytics
	if err := c.do(ctx, request{method: http.MethodGet, path: studentPath(studentID, "analytics")}, &out); err != nil {
		return nil, fmt.Errorf("get analytics: %w", err)
	}
	if out.StudentID == "" {
		out.StudentID = studentID
	}
	return &out, nil
}

// ListBadges returns the badges a student has earned.
func (c *Client) ListBadges(ctx context.Context, studentID string) ([]model.Badge, error) {
	var out []model.Badge
	if err := c.cachedList(ctx, "student", studentPath(studentID, "badges"), nil, &out); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return out, nil
}

func studentPath(studentID, view string) string {
	return "/students/" + url.PathEscape(studentID) + "/" + view
}
