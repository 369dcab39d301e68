package service

import (
	"context"
	"fmt"
	"time"

	"examgrader/internal/dto"
	"examgrader/internal/model"
	"examgrader/internal/paper"
	"examgrader/internal/repository"

	"github.com/rs/zerolog/log"
)

// AttemptService orchestrates the submission pipeline: grade the answer,
// mint the attempt id, persist the complete record, and expose it for later
// retrieval and deletion.
type AttemptService interface {
	Submit(ctx context.Context, req dto.SubmitAttemptRequest) (*model.Attempt, error)
	Get(userID, attemptID string) (*model.Attempt, error)
	Delete(userID, attemptID string) error
}

type attemptService struct {
	attemptRepo    repository.AttemptRepository
	gradingService GradingService
	now            func() time.Time
}

func NewAttemptService(attemptRepo repository.AttemptRepository, gradingService GradingService) AttemptService {
	return &attemptService{
		attemptRepo:    attemptRepo,
		gradingService: gradingService,
		now:            time.Now,
	}
}

// NewAttemptID derives a globally unique attempt id from the owner, the
// sanitized paper id, and the creation timestamp. Assigned exactly once at
// creation and never reassigned.
func NewAttemptID(userID, paperID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", userID, paper.Sanitize(paperID), at.UnixMilli())
}

func (s *attemptService) Submit(ctx context.Context, req dto.SubmitAttemptRequest) (*model.Attempt, error) {
	timeSpent := int(req.TimeSpent)

	log.Info().Str("userId", req.UserID).Str("paperId", req.PaperID).Int("timeSpent", timeSpent).Msg("Grading submitted attempt")
	result, err := s.gradingService.GradeAnswer(ctx, req.PaperID, req.AnswerText, timeSpent)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	attempt := &model.Attempt{
		AttemptID:     NewAttemptID(req.UserID, req.PaperID, createdAt),
		PaperID:       req.PaperID,
		UserID:        req.UserID,
		AnswerText:    req.AnswerText,
		FileURL:       req.FileURL,
		FileName:      req.FileName,
		TimeSpent:     timeSpent,
		SubmittedAt:   createdAt,
		Score:         result.Score,
		Grade:         result.Grade,
		Feedback:      result.Feedback,
		SectionScores: result.SectionScores,
		Outline:       result.Outline,
	}

	if err := s.attemptRepo.Create(attempt); err != nil {
		log.Error().Err(err).Str("attemptId", attempt.AttemptID).Msg("Failed to save graded attempt")
		return nil, err
	}

	log.Info().Str("userId", req.UserID).Str("attemptId", attempt.AttemptID).Int("score", attempt.Score).Str("grade", attempt.Grade).Msg("Attempt graded and saved")
	return attempt, nil
}

func (s *attemptService) Get(userID, attemptID string) (*model.Attempt, error) {
	return s.attemptRepo.Get(userID, attemptID)
}

func (s *attemptService) Delete(userID, attemptID string) error {
	if err := s.attemptRepo.Delete(userID, attemptID); err != nil {
		return err
	}
	log.Info().Str("userId", userID).Str("attemptId", attemptID).Msg("Attempt deleted")
	return nil
}
