package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"focusd/services/api/internal/models"
)

var (
	ErrInvalid  = errors.New("invalid task")
	ErrNotFound = errors.New("task not found")
)

const maxTitleLength = 200

// Task is the API representation of a task.
type Task struct {
	ID                 uint      `json:"id"`
	UserID             uint      `json:"userId"`
	Title              string    `json:"title"`
	Description        *string   `json:"description"`
	EstimatedPomodoros int       `json:"estimatedPomodoros"`
	CompletedPomodoros int       `json:"completedPomodoros"`
	IsCompleted        bool      `json:"isCompleted"`
	IsArchived         bool      `json:"isArchived"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// FromModel converts the stored row to its API shape.
func FromModel(m models.Task) Task {
	return Task{
		ID:                 m.ID,
		UserID:             m.UserID,
		Title:              m.Title,
		Description:        m.Description,
		EstimatedPomodoros: m.EstimatedPomodoros,
		CompletedPomodoros: m.CompletedPomodoros,
		IsCompleted:        m.IsCompleted,
		IsArchived:         m.IsArchived,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// CreateInput is the payload for a new task.
type CreateInput struct {
	Title              string  `json:"title"`
	Description        *string `json:"description"`
	EstimatedPomodoros *int    `json:"estimatedPomodoros"`
}

// UpdateInput carries the fields to change. Nil fields are left alone.
type UpdateInput struct {
	Title              *string `json:"title"`
	Description        *string `json:"description"`
	EstimatedPomodoros *int    `json:"estimatedPomodoros"`
	IsArchived         *bool   `json:"isArchived"`
}

// Service manages a user's tasks.
type Service struct {
	orm    *gorm.DB
	logger zerolog.Logger
}

// NewService wires the task service.
func NewService(orm *gorm.DB, logger zerolog.Logger) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Service{orm: orm, logger: logger}, nil
}

// Create stores a new task for userID.
func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (Task, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return Task{}, err
	}
	estimated := 1
	if in.EstimatedPomodoros != nil {
		estimated = *in.EstimatedPomodoros
	}
	if estimated < 1 {
		return Task{}, fmt.Errorf("%w: estimatedPomodoros must be at least 1", ErrInvalid)
	}

	row := models.Task{
		UserID:             userID,
		Title:              title,
		Description:        trimmed(in.Description),
		EstimatedPomodoros: estimated,
	}
	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return Task{}, err
	}
	s.logger.Debug().Uint("user_id", userID).Uint("task_id", row.ID).Msg("task created")
	return FromModel(row), nil
}

// List returns the user's tasks, newest first. Archived tasks are included only on request.
func (s *Service) List(ctx context.Context, userID uint, includeArchived bool) ([]Task, error) {
	q := s.orm.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}

	var rows []models.Task
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// Get returns one of the user's tasks.
func (s *Service) Get(ctx context.Context, userID, id uint) (Task, error) {
	row, err := s.find(s.orm.WithContext(ctx), userID, id)
	if err != nil {
		return Task{}, err
	}
	return FromModel(row), nil
}

// Update applies a partial change. Progress counters are not writable here.
func (s *Service) Update(ctx context.Context, userID, id uint, in UpdateInput) (Task, error) {
	updates := map[string]any{}
	if in.Title != nil {
		title, err := validTitle(*in.Title)
		if err != nil {
			return Task{}, err
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = trimmed(in.Description)
	}
	if in.EstimatedPomodoros != nil {
		if *in.EstimatedPomodoros < 1 {
			return Task{}, fmt.Errorf("%w: estimatedPomodoros must be at least 1", ErrInvalid)
		}
		updates["estimated_pomodoros"] = *in.EstimatedPomodoros
	}
	if in.IsArchived != nil {
		updates["is_archived"] = *in.IsArchived
	}

	var row models.Task
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.find(tx, userID, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		row, err = s.find(tx, userID, id)
		return err
	})
	if err != nil {
		return Task{}, err
	}
	return FromModel(row), nil
}

// Delete removes the task. Sessions recorded against it are kept and unlinked.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.PomodoroSession{}).
			Where("task_id = ?", row.ID).
			Update("task_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}

func (s *Service) find(tx *gorm.DB, userID, id uint) (models.Task, error) {
	var row models.Task
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return row, nil
}

func validTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if len(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", ErrInvalid, maxTitleLength)
	}
	return title, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
