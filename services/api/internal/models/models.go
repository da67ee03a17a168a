package models

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is an account holder. PasswordHash never leaves this package's callers.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// Task is a unit of work estimated in focus intervals.
type Task struct {
	ID                 uint    `gorm:"primaryKey"`
	UserID             uint    `gorm:"not null;index"`
	Title              string  `gorm:"not null"`
	Description        *string `gorm:"type:text"`
	EstimatedPomodoros int     `gorm:"not null"`
	CompletedPomodoros int     `gorm:"not null"`
	IsCompleted        bool    `gorm:"not null"`
	IsArchived         bool    `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Task) TableName() string { return "tasks" }

// PomodoroSession is one completed focus interval. Rows are never updated after insert.
type PomodoroSession struct {
	ID              uint  `gorm:"primaryKey"`
	UserID          uint  `gorm:"not null;index"`
	TaskID          *uint `gorm:"index"`
	DurationSeconds int   `gorm:"not null"`
	StartTime       time.Time
	EndTime         time.Time
	CreatedAt       time.Time
	Task            *Task `gorm:"foreignKey:TaskID;references:ID"`
}

func (PomodoroSession) TableName() string { return "pomodoro_sessions" }

// Settings holds the per-user timer preferences. Durations are minutes.
type Settings struct {
	ID                   uint   `gorm:"primaryKey"`
	UserID               uint   `gorm:"not null;uniqueIndex"`
	WorkDuration         int    `gorm:"not null"`
	ShortBreakDuration   int    `gorm:"not null"`
	LongBreakDuration    int    `gorm:"not null"`
	AutoStartBreaks      bool   `gorm:"not null"`
	AutoStartPomodoros   bool   `gorm:"not null"`
	TickVolume           int    `gorm:"not null"`
	NotificationVolume   int    `gorm:"not null"`
	BackgroundSound      string `gorm:"not null"`
	TickingSound         string `gorm:"not null"`
	AlarmSound           string `gorm:"not null"`
	AlertAt25Percent     bool   `gorm:"column:alert_at25_percent;not null"`
	NotificationsEnabled bool   `gorm:"not null"`
	MiniClockMode        bool   `gorm:"not null"`
	LockWindow           bool   `gorm:"not null"`
	DailyGoal            int    `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Settings) TableName() string { return "settings" }

// FocusMode is a named timer preset.
type FocusMode struct {
	ID                 uint   `gorm:"primaryKey"`
	UserID             uint   `gorm:"not null;index"`
	Name               string `gorm:"not null"`
	IsDefault          bool   `gorm:"not null"`
	WorkDuration       int    `gorm:"not null"`
	ShortBreakDuration int    `gorm:"not null"`
	LongBreakDuration  int    `gorm:"not null"`
	AmbientSound       string `gorm:"not null"`
	AmbientVolume      int    `gorm:"not null"`
	AlarmSound         string `gorm:"not null"`
	AlertAt25Percent   bool   `gorm:"column:alert_at25_percent;not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (FocusMode) TableName() string { return "focus_modes" }

// Activity is an entry in a user's activity feed, written by the ingest worker.
type Activity struct {
	ID         int64  `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;index"`
	Action     string `gorm:"not null"`
	ObjectType string `gorm:"not null"`
	ObjectID   string
	Details    datatypes.JSON
	CreatedAt  time.Time
}

func (Activity) TableName() string { return "activities" }

// DefaultSettings returns the settings a user starts with.
func DefaultSettings(userID uint) Settings {
	return Settings{
		UserID:               userID,
		WorkDuration:         25,
		ShortBreakDuration:   5,
		LongBreakDuration:    15,
		TickVolume:           50,
		NotificationVolume:   50,
		BackgroundSound:      "none",
		TickingSound:         "none",
		AlarmSound:           "bell",
		NotificationsEnabled: true,
		DailyGoal:            DefaultDailyGoal,
	}
}

// DefaultDailyGoal is the focus target in minutes when a user has no settings row.
const DefaultDailyGoal = 120

// DefaultFocusModeName names the profile created for users that have none.
const DefaultFocusModeName = "Default Focus"

// DefaultFocusMode returns the profile auto-created for a user with no focus modes.
func DefaultFocusMode(userID uint) FocusMode {
	return FocusMode{
		UserID:             userID,
		Name:               DefaultFocusModeName,
		IsDefault:          true,
		WorkDuration:       25,
		ShortBreakDuration: 5,
		LongBreakDuration:  15,
		AmbientSound:       "none",
		AmbientVolume:      50,
		AlarmSound:         "bell",
	}
}

// AutoMigrate creates the runtime schema directly from the models. Production databases are
// migrated with goose; this path serves AUTO_MIGRATE and tests.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&User{},
		&Task{},
		&PomodoroSession{},
		&Settings{},
		&FocusMode{},
		&Activity{},
	)
}
