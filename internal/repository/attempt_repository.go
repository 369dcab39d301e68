package repository

import (
	"errors"
	"fmt"

	"examgrader/internal/apperr"
	"examgrader/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	Create(attempt *model.Attempt) error
	Get(userID, attemptID string) (*model.Attempt, error)
	Delete(userID, attemptID string) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Create writes a new attempt under the owning user's partition. Ids carry a
// fresh timestamp so collisions are practically excluded, but the write is
// still an upsert-at-id so a replayed request stays idempotent.
func (r *attemptRepository) Create(attempt *model.Attempt) error {
	err := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}},
			UpdateAll: true,
		}).
		Create(attempt).Error
	if err != nil {
		return &apperr.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

func (r *attemptRepository) Get(userID, attemptID string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Where("user_id = ? AND attempt_id = ?", userID, attemptID).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "get", Err: err}
	}
	return &attempt, nil
}

// Delete checks existence before deleting so the caller can distinguish
// "nothing to delete" from "deleted". The delete itself is hard.
func (r *attemptRepository) Delete(userID, attemptID string) error {
	if _, err := r.Get(userID, attemptID); err != nil {
		return err
	}
	err := r.db.
		Where("user_id = ? AND attempt_id = ?", userID, attemptID).
		Delete(&model.Attempt{}).Error
	if err != nil {
		return &apperr.PersistenceError{Op: "delete", Err: err}
	}
	return nil
}
