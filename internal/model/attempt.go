package model

import (
	"time"
)

// SectionScores is the fixed-shape per-section breakdown. Each value is
// either "N/A" or "<int>/20".
type SectionScores struct {
	SectionA string `json:"sectionA"`
	SectionB string `json:"sectionB"`
	SectionC string `json:"sectionC"`
}

// GradingResult is the structurally-validated output of the grading backend.
// All fields are always present together; a partial result is never produced.
type GradingResult struct {
	Score         int           `json:"score"`
	Grade         string        `json:"grade"`
	Feedback      string        `json:"feedback"`
	SectionScores SectionScores `json:"sectionScores"`
	Outline       string        `json:"outline"`
}

// Attempt is one graded submission by a user for one exam paper. Attempts are
// immutable once created; the only lifecycle transition is a hard delete, so
// there is deliberately no soft-delete column here.
type Attempt struct {
	AttemptID     string        `json:"attemptId" gorm:"primaryKey;column:attempt_id"`
	PaperID       string        `json:"paperId" gorm:"not null;index"`
	UserID        string        `json:"userId" gorm:"not null;index"`
	AnswerText    string        `json:"answerText" gorm:"type:text"`
	FileURL       *string       `json:"fileUrl" gorm:"column:file_url"`
	FileName      *string       `json:"fileName"`
	TimeSpent     int           `json:"timeSpent" gorm:"not null;default:0"`
	SubmittedAt   time.Time     `json:"submittedAt" gorm:"autoCreateTime"`
	Score         int           `json:"score" gorm:"not null"`
	Grade         string        `json:"grade" gorm:"not null"`
	Feedback      string        `json:"feedback" gorm:"type:text"`
	SectionScores SectionScores `json:"sectionScores" gorm:"serializer:json"`
	Outline       string        `json:"outline" gorm:"type:text"`
}
