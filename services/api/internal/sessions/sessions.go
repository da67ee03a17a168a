// Package sessions records completed focus intervals and advances the progress of the task
// each one was spent on.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"focusd/services/api/internal/models"
	"focusd/services/api/internal/tasks"
)

const (
	SessionRecordedSubject = "focusd.sessions.recorded"
	TaskCompletedSubject   = "focusd.tasks.completed"

	publishTimeout = 2 * time.Second

	// MaxDurationSeconds caps a single session at one day.
	MaxDurationSeconds = 24 * 60 * 60
)

var (
	ErrInvalid      = errors.New("invalid session")
	ErrTaskNotFound = errors.New("task not found")
	ErrForbidden    = errors.New("you do not own this task")
)

// TaskNotFoundError names the task id that could not be found. It matches ErrTaskNotFound.
type TaskNotFoundError struct {
	TaskID uint
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task with ID %d not found", e.TaskID)
}

func (e *TaskNotFoundError) Is(target error) bool { return target == ErrTaskNotFound }

var (
	sessionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focusd_sessions_recorded_total",
		Help: "Focus sessions recorded.",
	})
	tasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focusd_tasks_completed_total",
		Help: "Tasks that reached their estimate through a recorded session.",
	})
	recordedSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focusd_focus_seconds_total",
		Help: "Total focus time recorded, in seconds.",
	})
)

var tracer = otel.Tracer("focusd/sessions")

// Session is the API representation of a recorded focus interval.
type Session struct {
	ID              uint        `json:"id"`
	UserID          uint        `json:"userId"`
	TaskID          *uint       `json:"taskId"`
	DurationSeconds int         `json:"durationSeconds"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
	CreatedAt       time.Time   `json:"createdAt"`
	Task            *tasks.Task `json:"task,omitempty"`
}

// FromModel converts a stored session, embedding the task when it was preloaded.
func FromModel(m models.PomodoroSession) Session {
	s := Session{
		ID:              m.ID,
		UserID:          m.UserID,
		TaskID:          m.TaskID,
		DurationSeconds: m.DurationSeconds,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		CreatedAt:       m.CreatedAt,
	}
	if m.Task != nil {
		t := tasks.FromModel(*m.Task)
		s.Task = &t
	}
	return s
}

// RecordInput is the payload for recording a session.
type RecordInput struct {
	DurationSeconds int   `json:"durationSeconds"`
	TaskID          *uint `json:"taskId"`
}

// Publisher delivers domain events. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// SessionRecordedEvent is published after every recorded session.
type SessionRecordedEvent struct {
	SessionID       uint      `json:"session_id"`
	UserID          uint      `json:"user_id"`
	TaskID          *uint     `json:"task_id,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	StartTime       time.Time `json:"start_time"`
	TaskCompleted   bool      `json:"task_completed"`
}

// TaskCompletedEvent is published when a recorded session makes a task reach its estimate.
type TaskCompletedEvent struct {
	TaskID             uint      `json:"task_id"`
	UserID             uint      `json:"user_id"`
	CompletedPomodoros int       `json:"completed_pomodoros"`
	EstimatedPomodoros int       `json:"estimated_pomodoros"`
	CompletedAt        time.Time `json:"completed_at"`
}

// Service records and lists focus sessions.
type Service struct {
	orm    *gorm.DB
	bus    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires the recorder. bus may be nil, in which case no events are published.
func NewService(orm *gorm.DB, bus Publisher, logger zerolog.Logger) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Service{orm: orm, bus: bus, logger: logger, now: time.Now}, nil
}

// Record stores a completed session for userID. When the session references a task, the
// task's counter is incremented and it is marked completed once the counter reaches the
// estimate. The insert and both task updates commit or roll back together.
func (s *Service) Record(ctx context.Context, userID uint, in RecordInput) (Session, error) {
	ctx, span := tracer.Start(ctx, "sessions.Record")
	defer span.End()

	if in.DurationSeconds <= 0 {
		return Session{}, fmt.Errorf("%w: durationSeconds must be a positive integer", ErrInvalid)
	}
	if in.DurationSeconds > MaxDurationSeconds {
		return Session{}, fmt.Errorf("%w: durationSeconds must not exceed %d", ErrInvalid, MaxDurationSeconds)
	}
	if in.TaskID != nil && *in.TaskID == 0 {
		return Session{}, fmt.Errorf("%w: taskId must be a positive integer", ErrInvalid)
	}

	db := s.orm.WithContext(ctx)
	if in.TaskID != nil {
		span.SetAttributes(attribute.Int64("focusd.task_id", int64(*in.TaskID)))
		if err := checkOwner(db, userID, *in.TaskID); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Session{}, err
		}
	}

	start := s.now().UTC()
	row := models.PomodoroSession{
		UserID:          userID,
		TaskID:          in.TaskID,
		DurationSeconds: in.DurationSeconds,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(in.DurationSeconds) * time.Second),
		CreatedAt:       start,
	}

	var completed *models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if in.TaskID == nil {
			return nil
		}
		var err error
		completed, err = advanceTask(tx, *in.TaskID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Session{}, err
	}

	sessionsRecorded.Inc()
	recordedSeconds.Add(float64(in.DurationSeconds))
	if completed != nil {
		tasksCompleted.Inc()
	}

	s.logger.Info().
		Uint("user_id", userID).
		Uint("session_id", row.ID).
		Int("duration_seconds", row.DurationSeconds).
		Bool("task_completed", completed != nil).
		Msg("session recorded")

	s.publish(ctx, row, completed)
	return FromModel(row), nil
}

// List returns every session of userID with its task embedded, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]Session, error) {
	var rows []models.PomodoroSession
	err := s.orm.WithContext(ctx).
		Preload("Task").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func checkOwner(db *gorm.DB, userID, taskID uint) error {
	var task models.Task
	err := db.Select("id", "user_id").First(&task, taskID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &TaskNotFoundError{TaskID: taskID}
	case err != nil:
		return fmt.Errorf("load task: %w", err)
	case task.UserID != userID:
		return ErrForbidden
	}
	return nil
}

// advanceTask increments the counter in place and flips the completion flag when the
// estimate is reached. It returns the task only when this call completed it.
func advanceTask(tx *gorm.DB, taskID uint) (*models.Task, error) {
	res := tx.Model(&models.Task{}).
		Where("id = ?", taskID).
		Update("completed_pomodoros", gorm.Expr("completed_pomodoros + ?", 1))
	if res.Error != nil {
		return nil, fmt.Errorf("increment task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Deleted between the ownership check and the transaction.
		return nil, &TaskNotFoundError{TaskID: taskID}
	}

	res = tx.Model(&models.Task{}).
		Where("id = ? AND is_completed = ? AND completed_pomodoros >= estimated_pomodoros", taskID, false).
		Update("is_completed", true)
	if res.Error != nil {
		return nil, fmt.Errorf("complete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var task models.Task
	if err := tx.First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	return &task, nil
}

func (s *Service) publish(ctx context.Context, row models.PomodoroSession, completed *models.Task) {
	if s.bus == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	recorded := SessionRecordedEvent{
		SessionID:       row.ID,
		UserID:          row.UserID,
		TaskID:          row.TaskID,
		DurationSeconds: row.DurationSeconds,
		StartTime:       row.StartTime,
		TaskCompleted:   completed != nil,
	}
	if err := s.bus.Publish(ctx, SessionRecordedSubject, recorded); err != nil {
		s.logger.Warn().Err(err).Str("subject", SessionRecordedSubject).Uint("session_id", row.ID).Msg("publish event")
	}

	if completed == nil {
		return
	}
	done := TaskCompletedEvent{
		TaskID:             completed.ID,
		UserID:             completed.UserID,
		CompletedPomodoros: completed.CompletedPomodoros,
		EstimatedPomodoros: completed.EstimatedPomodoros,
		CompletedAt:        row.EndTime,
	}
	if err := s.bus.Publish(ctx, TaskCompletedSubject, done); err != nil {
		s.logger.Warn().Err(err).Str("subject", TaskCompletedSubject).Uint("task_id", completed.ID).Msg("publish event")
	}
}
