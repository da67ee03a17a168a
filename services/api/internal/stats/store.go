package stats

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"focusd/pkg/db"
	"focusd/services/api/internal/models"
)

const dayLayout = "2006-01-02"

// DayTotal is the focus time recorded on one calendar day.
type DayTotal struct {
	Day     string `db:"day"`
	Seconds int64  `db:"seconds"`
}

// Store aggregates recorded focus time per calendar day of loc for sessions starting in [from, to).
type Store interface {
	DailyTotals(ctx context.Context, userID uint, from, to time.Time, loc *time.Location) ([]DayTotal, error)
}

// ORMStore aggregates in Go on top of GORM. It works against any dialect.
type ORMStore struct {
	orm *gorm.DB
}

// NewORMStore wraps a GORM handle.
func NewORMStore(orm *gorm.DB) (*ORMStore, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &ORMStore{orm: orm}, nil
}

func (s *ORMStore) DailyTotals(ctx context.Context, userID uint, from, to time.Time, loc *time.Location) ([]DayTotal, error) {
	var rows []models.PomodoroSession
	err := s.orm.WithContext(ctx).
		Select("start_time", "duration_seconds").
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, from.UTC(), to.UTC()).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var out []DayTotal
	for _, row := range rows {
		day := row.StartTime.In(loc).Format(dayLayout)
		if n := len(out); n > 0 && out[n-1].Day == day {
			out[n-1].Seconds += int64(row.DurationSeconds)
			continue
		}
		out = append(out, DayTotal{Day: day, Seconds: int64(row.DurationSeconds)})
	}
	return out, nil
}

// PGStore aggregates in Postgres through the pgx pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a pgx pool.
func NewPGStore(pool *pgxpool.Pool) (*PGStore, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PGStore{pool: pool}, nil
}

const dailyTotalsQuery = `
SELECT to_char(date_trunc('day', start_time AT TIME ZONE $2), 'YYYY-MM-DD') AS day,
       SUM(duration_seconds)::bigint AS seconds
FROM pomodoro_sessions
WHERE user_id = $1 AND start_time >= $3 AND start_time < $4
GROUP BY 1
ORDER BY 1`

func (s *PGStore) DailyTotals(ctx context.Context, userID uint, from, to time.Time, loc *time.Location) ([]DayTotal, error) {
	var out []DayTotal
	if err := db.Select(ctx, s.pool, &out, dailyTotalsQuery, int64(userID), loc.String(), from, to); err != nil {
		return nil, err
	}
	return out, nil
}
