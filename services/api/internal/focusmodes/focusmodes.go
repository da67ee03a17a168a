package focusmodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"focusd/services/api/internal/models"
)

var (
	ErrInvalid       = errors.New("invalid focus mode")
	ErrNotFound      = errors.New("focus mode not found")
	ErrLastFocusMode = errors.New("at least one profile must remain")
)

// FocusMode is the API representation of a timer preset.
type FocusMode struct {
	ID                 uint      `json:"id"`
	UserID             uint      `json:"userId"`
	Name               string    `json:"name"`
	IsDefault          bool      `json:"isDefault"`
	WorkDuration       int       `json:"workDuration"`
	ShortBreakDuration int       `json:"shortBreakDuration"`
	LongBreakDuration  int       `json:"longBreakDuration"`
	AmbientSound       string    `json:"ambientSound"`
	AmbientVolume      int       `json:"ambientVolume"`
	AlarmSound         string    `json:"alarmSound"`
	AlertAt25Percent   bool      `json:"alertAt25Percent"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func fromModel(m models.FocusMode) FocusMode {
	return FocusMode{
		ID:                 m.ID,
		UserID:             m.UserID,
		Name:               m.Name,
		IsDefault:          m.IsDefault,
		WorkDuration:       m.WorkDuration,
		ShortBreakDuration: m.ShortBreakDuration,
		LongBreakDuration:  m.LongBreakDuration,
		AmbientSound:       m.AmbientSound,
		AmbientVolume:      m.AmbientVolume,
		AlarmSound:         m.AlarmSound,
		AlertAt25Percent:   m.AlertAt25Percent,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// Input carries the writable fields of a focus mode. The client sends the whole object on
// update, so identity and bookkeeping fields are accepted and ignored.
type Input struct {
	Name               *string `json:"name"`
	WorkDuration       *int    `json:"workDuration"`
	ShortBreakDuration *int    `json:"shortBreakDuration"`
	LongBreakDuration  *int    `json:"longBreakDuration"`
	AmbientSound       *string `json:"ambientSound"`
	AmbientVolume      *int    `json:"ambientVolume"`
	AlarmSound         *string `json:"alarmSound"`
	AlertAt25Percent   *bool   `json:"alertAt25Percent"`

	ID        json.RawMessage `json:"id,omitempty"`
	UserID    json.RawMessage `json:"userId,omitempty"`
	IsDefault json.RawMessage `json:"isDefault,omitempty"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt json.RawMessage `json:"updatedAt,omitempty"`
}

func (in Input) apply(m *models.FocusMode) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalid)
		}
		m.Name = name
	}
	for _, f := range []struct {
		name  string
		value *int
		dst   *int
	}{
		{"workDuration", in.WorkDuration, &m.WorkDuration},
		{"shortBreakDuration", in.ShortBreakDuration, &m.ShortBreakDuration},
		{"longBreakDuration", in.LongBreakDuration, &m.LongBreakDuration},
	} {
		if f.value == nil {
			continue
		}
		if *f.value < 1 {
			return fmt.Errorf("%w: %s must be at least 1", ErrInvalid, f.name)
		}
		*f.dst = *f.value
	}
	if in.AmbientVolume != nil {
		if *in.AmbientVolume < 0 || *in.AmbientVolume > 100 {
			return fmt.Errorf("%w: ambientVolume must be between 0 and 100", ErrInvalid)
		}
		m.AmbientVolume = *in.AmbientVolume
	}
	if in.AmbientSound != nil {
		m.AmbientSound = *in.AmbientSound
	}
	if in.AlarmSound != nil {
		m.AlarmSound = *in.AlarmSound
	}
	if in.AlertAt25Percent != nil {
		m.AlertAt25Percent = *in.AlertAt25Percent
	}
	return nil
}

var writableColumns = []string{
	"name", "work_duration", "short_break_duration", "long_break_duration",
	"ambient_sound", "ambient_volume", "alarm_sound", "alert_at25_percent", "updated_at",
}

// Service manages focus mode profiles.
type Service struct {
	orm *gorm.DB
}

// NewService wires the focus mode service.
func NewService(orm *gorm.DB) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Service{orm: orm}, nil
}

// List returns the user's profiles, oldest first. A user without any gets the default profile.
func (s *Service) List(ctx context.Context, userID uint) ([]FocusMode, error) {
	var rows []models.FocusMode
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			return nil
		}
		def := models.DefaultFocusMode(userID)
		if err := tx.Create(&def).Error; err != nil {
			return fmt.Errorf("create default focus mode: %w", err)
		}
		rows = append(rows, def)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]FocusMode, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

// Create adds a non-default profile. Missing fields take the default profile's values.
func (s *Service) Create(ctx context.Context, userID uint, in Input) (FocusMode, error) {
	if in.Name == nil {
		return FocusMode{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	row := models.DefaultFocusMode(userID)
	row.IsDefault = false
	if err := in.apply(&row); err != nil {
		return FocusMode{}, err
	}
	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return FocusMode{}, err
	}
	return fromModel(row), nil
}

// Update changes one of the user's profiles.
func (s *Service) Update(ctx context.Context, userID, id uint, in Input) (FocusMode, error) {
	var row models.FocusMode
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = find(tx, userID, id); err != nil {
			return err
		}
		if err := in.apply(&row); err != nil {
			return err
		}
		row.UpdatedAt = time.Now()
		return tx.Model(&row).Select(writableColumns).Updates(&row).Error
	})
	if err != nil {
		return FocusMode{}, err
	}
	return fromModel(row), nil
}

// Delete removes a profile unless it is the user's last one.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := find(tx, userID, id)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.FocusMode{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastFocusMode
		}
		return tx.Delete(&row).Error
	})
}

func find(tx *gorm.DB, userID, id uint) (models.FocusMode, error) {
	var row models.FocusMode
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FocusMode{}, ErrNotFound
		}
		return models.FocusMode{}, err
	}
	return row, nil
}
