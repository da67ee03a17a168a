package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"focusd/services/api/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxLimit)

// Activity is the API representation of a feed entry.
type Activity struct {
	ID         int64           `json:"id"`
	Action     string          `json:"action"`
	ObjectType string          `json:"objectType"`
	ObjectID   string          `json:"objectId"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Feed reads a user's activity through GORM.
type Feed struct {
	orm *gorm.DB
}

func NewFeed(orm *gorm.DB) (*Feed, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Feed{orm: orm}, nil
}

// List returns up to limit entries, newest first. A zero limit means DefaultLimit.
func (f *Feed) List(ctx context.Context, userID uint, limit int) ([]Activity, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}

	var rows []models.Activity
	err := f.orm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(rows))
	for _, row := range rows {
		details := json.RawMessage(row.Details)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}
		out = append(out, Activity{
			ID:         row.ID,
			Action:     row.Action,
			ObjectType: row.ObjectType,
			ObjectID:   row.ObjectID,
			Details:    details,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// Insert stores an entry through GORM, so a Feed can also serve as a Sink.
func (f *Feed) Insert(ctx context.Context, e Entry) error {
	if len(e.Details) == 0 {
		e.Details = json.RawMessage("{}")
	}
	row := models.Activity{
		UserID:     e.UserID,
		Action:     e.Action,
		ObjectType: e.ObjectType,
		ObjectID:   e.ObjectID,
		Details:    datatypes.JSON(e.Details),
		CreatedAt:  e.CreatedAt,
	}
	return f.orm.WithContext(ctx).Create(&row).Error
}
