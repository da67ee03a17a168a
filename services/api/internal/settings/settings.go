package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"focusd/services/api/internal/models"
)

var ErrInvalid = errors.New("invalid settings")

// Settings is the API representation of a user's timer preferences.
type Settings struct {
	ID                   uint      `json:"id"`
	UserID               uint      `json:"userId"`
	WorkDuration         int       `json:"workDuration"`
	ShortBreakDuration   int       `json:"shortBreakDuration"`
	LongBreakDuration    int       `json:"longBreakDuration"`
	AutoStartBreaks      bool      `json:"autoStartBreaks"`
	AutoStartPomodoros   bool      `json:"autoStartPomodoros"`
	TickVolume           int       `json:"tickVolume"`
	NotificationVolume   int       `json:"notificationVolume"`
	BackgroundSound      string    `json:"backgroundSound"`
	TickingSound         string    `json:"tickingSound"`
	AlarmSound           string    `json:"alarmSound"`
	AlertAt25Percent     bool      `json:"alertAt25Percent"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	MiniClockMode        bool      `json:"miniClockMode"`
	LockWindow           bool      `json:"lockWindow"`
	DailyGoal            int       `json:"dailyGoal"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func fromModel(m models.Settings) Settings {
	return Settings{
		ID:                   m.ID,
		UserID:               m.UserID,
		WorkDuration:         m.WorkDuration,
		ShortBreakDuration:   m.ShortBreakDuration,
		LongBreakDuration:    m.LongBreakDuration,
		AutoStartBreaks:      m.AutoStartBreaks,
		AutoStartPomodoros:   m.AutoStartPomodoros,
		TickVolume:           m.TickVolume,
		NotificationVolume:   m.NotificationVolume,
		BackgroundSound:      m.BackgroundSound,
		TickingSound:         m.TickingSound,
		AlarmSound:           m.AlarmSound,
		AlertAt25Percent:     m.AlertAt25Percent,
		NotificationsEnabled: m.NotificationsEnabled,
		MiniClockMode:        m.MiniClockMode,
		LockWindow:           m.LockWindow,
		DailyGoal:            m.DailyGoal,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// Patch lists the fields a client may change. The settings page echoes the whole object back,
// so the read-only fields are accepted and ignored.
type Patch struct {
	WorkDuration         *int    `json:"workDuration"`
	ShortBreakDuration   *int    `json:"shortBreakDuration"`
	LongBreakDuration    *int    `json:"longBreakDuration"`
	AutoStartBreaks      *bool   `json:"autoStartBreaks"`
	AutoStartPomodoros   *bool   `json:"autoStartPomodoros"`
	TickVolume           *int    `json:"tickVolume"`
	NotificationVolume   *int    `json:"notificationVolume"`
	BackgroundSound      *string `json:"backgroundSound"`
	TickingSound         *string `json:"tickingSound"`
	AlarmSound           *string `json:"alarmSound"`
	AlertAt25Percent     *bool   `json:"alertAt25Percent"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
	MiniClockMode        *bool   `json:"miniClockMode"`
	LockWindow           *bool   `json:"lockWindow"`
	DailyGoal            *int    `json:"dailyGoal"`

	ID        json.RawMessage `json:"id,omitempty"`
	UserID    json.RawMessage `json:"userId,omitempty"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt json.RawMessage `json:"updatedAt,omitempty"`
}

func (p Patch) columns() (map[string]any, error) {
	cols := map[string]any{}

	positive := []struct {
		name   string
		column string
		value  *int
	}{
		{"workDuration", "work_duration", p.WorkDuration},
		{"shortBreakDuration", "short_break_duration", p.ShortBreakDuration},
		{"longBreakDuration", "long_break_duration", p.LongBreakDuration},
		{"dailyGoal", "daily_goal", p.DailyGoal},
	}
	for _, f := range positive {
		if f.value == nil {
			continue
		}
		if *f.value < 1 {
			return nil, fmt.Errorf("%w: %s must be at least 1", ErrInvalid, f.name)
		}
		cols[f.column] = *f.value
	}

	volumes := []struct {
		name   string
		column string
		value  *int
	}{
		{"tickVolume", "tick_volume", p.TickVolume},
		{"notificationVolume", "notification_volume", p.NotificationVolume},
	}
	for _, f := range volumes {
		if f.value == nil {
			continue
		}
		if *f.value < 0 || *f.value > 100 {
			return nil, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalid, f.name)
		}
		cols[f.column] = *f.value
	}

	sounds := []struct {
		name   string
		column string
		value  *string
	}{
		{"backgroundSound", "background_sound", p.BackgroundSound},
		{"tickingSound", "ticking_sound", p.TickingSound},
		{"alarmSound", "alarm_sound", p.AlarmSound},
	}
	for _, f := range sounds {
		if f.value == nil {
			continue
		}
		if *f.value == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalid, f.name)
		}
		cols[f.column] = *f.value
	}

	flags := []struct {
		column string
		value  *bool
	}{
		{"auto_start_breaks", p.AutoStartBreaks},
		{"auto_start_pomodoros", p.AutoStartPomodoros},
		{"alert_at25_percent", p.AlertAt25Percent},
		{"notifications_enabled", p.NotificationsEnabled},
		{"mini_clock_mode", p.MiniClockMode},
		{"lock_window", p.LockWindow},
	}
	for _, f := range flags {
		if f.value != nil {
			cols[f.column] = *f.value
		}
	}

	return cols, nil
}

// Service reads and writes per-user settings.
type Service struct {
	orm *gorm.DB
}

// NewService wires the settings service.
func NewService(orm *gorm.DB) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Service{orm: orm}, nil
}

// Get returns the user's settings, creating the defaults on first access.
func (s *Service) Get(ctx context.Context, userID uint) (Settings, error) {
	row, err := ensure(s.orm.WithContext(ctx), userID)
	if err != nil {
		return Settings{}, err
	}
	return fromModel(row), nil
}

// Update applies patch on top of the stored (or default) settings.
func (s *Service) Update(ctx context.Context, userID uint, patch Patch) (Settings, error) {
	cols, err := patch.columns()
	if err != nil {
		return Settings{}, err
	}

	var row models.Settings
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = ensure(tx, userID); err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(cols).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&row).Error
	})
	if err != nil {
		return Settings{}, err
	}
	return fromModel(row), nil
}

// DailyGoal returns the user's goal in minutes, or fallback when no settings row exists yet.
func (s *Service) DailyGoal(ctx context.Context, userID uint, fallback int) (int, error) {
	var row models.Settings
	err := s.orm.WithContext(ctx).Select("daily_goal").Where("user_id = ?", userID).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fallback, nil
	case err != nil:
		return 0, err
	case row.DailyGoal < 1:
		return fallback, nil
	}
	return row.DailyGoal, nil
}

func ensure(db *gorm.DB, userID uint) (models.Settings, error) {
	defaults := models.DefaultSettings(userID)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&defaults).Error; err != nil {
		return models.Settings{}, fmt.Errorf("create default settings: %w", err)
	}

	var row models.Settings
	if err := db.Where("user_id = ?", userID).First(&row).Error; err != nil {
		return models.Settings{}, err
	}
	return row, nil
}
