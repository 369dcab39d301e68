package dto

import (
	"time"

	"examgrader/internal/model"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type AttemptResponse struct {
	AttemptID     string              `json:"attemptId"`
	PaperID       string              `json:"paperId"`
	UserID        string              `json:"userId"`
	AnswerText    string              `json:"answerText"`
	FileURL       *string             `json:"fileUrl"`
	FileName      *string             `json:"fileName"`
	TimeSpent     int                 `json:"timeSpent"`
	SubmittedAt   time.Time           `json:"submittedAt"`
	Score         int                 `json:"score"`
	Grade         string              `json:"grade"`
	Feedback      string              `json:"feedback"`
	SectionScores model.SectionScores `json:"sectionScores"`
	Outline       string              `json:"outline"`
}

type SubmitAttemptResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AttemptResponse
}

type DeleteAttemptResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	DeletedAttemptID string `json:"deletedAttemptId"`
	RelatedPaperID   string `json:"relatedPaperId,omitempty"`
}

type GenerateOutlineResponse struct {
	Success bool   `json:"success"`
	PaperID string `json:"paperId"`
	Outline string `json:"outline"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Grading bool   `json:"grading"`
	Store   bool   `json:"store"`
}
