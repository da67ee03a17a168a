package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// The structs below freeze the schema as of this migration. Later model changes get their own migration.

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:text;uniqueIndex;not null"`
	Name         string    `gorm:"type:text;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

type Task struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"not null;index"`
	Title              string    `gorm:"type:text;not null"`
	Description        *string   `gorm:"type:text"`
	EstimatedPomodoros int       `gorm:"not null;default:1"`
	CompletedPomodoros int       `gorm:"not null;default:0"`
	IsCompleted        bool      `gorm:"not null;default:false"`
	IsArchived         bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"type:timestamptz;not null;default:now();index"`
	UpdatedAt          time.Time `gorm:"type:timestamptz;not null;default:now()"`
	User               User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type PomodoroSession struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          uint      `gorm:"not null;index:idx_pomodoro_sessions_user_start,priority:1"`
	TaskID          *uint     `gorm:"index"`
	DurationSeconds int       `gorm:"not null;check:duration_seconds > 0"`
	StartTime       time.Time `gorm:"type:timestamptz;not null;index:idx_pomodoro_sessions_user_start,priority:2"`
	EndTime         time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt       time.Time `gorm:"type:timestamptz;not null;default:now();index"`
	User            User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Task            *Task     `gorm:"foreignKey:TaskID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

type Settings struct {
	ID                   uint      `gorm:"primaryKey"`
	UserID               uint      `gorm:"not null;uniqueIndex"`
	WorkDuration         int       `gorm:"not null"`
	ShortBreakDuration   int       `gorm:"not null"`
	LongBreakDuration    int       `gorm:"not null"`
	AutoStartBreaks      bool      `gorm:"not null"`
	AutoStartPomodoros   bool      `gorm:"not null"`
	TickVolume           int       `gorm:"not null"`
	NotificationVolume   int       `gorm:"not null"`
	BackgroundSound      string    `gorm:"type:text;not null"`
	TickingSound         string    `gorm:"type:text;not null"`
	AlarmSound           string    `gorm:"type:text;not null"`
	AlertAt25Percent     bool      `gorm:"not null"`
	NotificationsEnabled bool      `gorm:"not null"`
	MiniClockMode        bool      `gorm:"not null"`
	LockWindow           bool      `gorm:"not null"`
	DailyGoal            int       `gorm:"not null"`
	CreatedAt            time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt            time.Time `gorm:"type:timestamptz;not null;default:now()"`
	User                 User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Settings) TableName() string { return "settings" }

type FocusMode struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"not null;index"`
	Name               string    `gorm:"type:text;not null"`
	IsDefault          bool      `gorm:"not null;default:false"`
	WorkDuration       int       `gorm:"not null"`
	ShortBreakDuration int       `gorm:"not null"`
	LongBreakDuration  int       `gorm:"not null"`
	AmbientSound       string    `gorm:"type:text;not null"`
	AmbientVolume      int       `gorm:"not null"`
	AlarmSound         string    `gorm:"type:text;not null"`
	AlertAt25Percent   bool      `gorm:"not null"`
	CreatedAt          time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time `gorm:"type:timestamptz;not null;default:now()"`
	User               User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Activity struct {
	ID         int64          `gorm:"type:bigserial;primaryKey"`
	UserID     uint           `gorm:"not null;index"`
	Action     string         `gorm:"type:text;not null"`
	ObjectType string         `gorm:"type:text;not null"`
	ObjectID   string         `gorm:"type:text"`
	Details    datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();index"`
}

func (Activity) TableName() string { return "activities" }

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Task{},
		&PomodoroSession{},
		&Settings{},
		&FocusMode{},
		&Activity{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Activity{},
		&FocusMode{},
		&Settings{},
		&PomodoroSession{},
		&Task{},
		&User{},
	)
}
