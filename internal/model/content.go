package model

import "time"

// Badge is a gamification award.
type Badge struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name" binding:"required,min=2,max=100"`
	Description string     `json:"description" binding:"max=500"`
	Icon        string     `json:"icon,omitempty" binding:"omitempty,url"`
	Points      int        `json:"points" binding:"min=0"`
	AwardedAt   *time.Time `json:"awardedAt,omitempty"`
}

// Material is a study resource attached to a batch.
type Material struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title" binding:"required,min=2,max=255"`
	Subject   string    `json:"subject" binding:"required,max=100"`
	URL       string    `json:"url" binding:"required,url"`
	Batch     string    `json:"batchName,omitempty" binding:"omitempty,max=64"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// AttemptRecord is one past exam attempt in a student's history.
type AttemptRecord struct {
	ExamCode    string    `json:"examCode"`
	ExamName    string    `json:"examName"`
	Score       float64   `json:"score"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Analytics is a student's performance summary.
type Analytics struct {
	StudentID    string          `json:"studentId"`
	ExamsTaken   int             `json:"examsTaken"`
	AverageScore float64         `json:"averageScore"`
	BestScore    float64         `json:"bestScore"`
	History      []AttemptRecord `json:"history"`
}
