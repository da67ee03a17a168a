package stats

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"focusd/pkg/render"
	"focusd/services/api/internal/models"
	"focusd/services/api/internal/testutil"
)

type fixedGoal int

func (g fixedGoal) DailyGoal(_ context.Context, _ uint, fallback int) (int, error) {
	if g == 0 {
		return fallback, nil
	}
	return int(g), nil
}

func addSession(t *testing.T, db *gorm.DB, userID uint, start time.Time, seconds int) {
	t.Helper()
	start = start.UTC()
	row := models.PomodoroSession{
		UserID:          userID,
		DurationSeconds: seconds,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(seconds) * time.Second),
		CreatedAt:       start,
	}
	require.NoError(t, db.Create(&row).Error)
}

func newService(t *testing.T, db *gorm.DB, goal fixedGoal, loc *time.Location, now time.Time) *Service {
	t.Helper()
	store, err := NewORMStore(db)
	require.NoError(t, err)
	engine, err := render.New()
	require.NoError(t, err)
	svc, err := NewService(Options{Store: store, Goals: goal, Renderer: engine, Location: loc, DefaultGoal: 120})
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSummary(t *testing.T) {
	db := testutil.NewDB(t)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	addSession(t, db, ada.ID, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), 1500)
	addSession(t, db, ada.ID, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 1519)
	addSession(t, db, ada.ID, time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC), 3000)
	addSession(t, db, ada.ID, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), 600)
	addSession(t, db, ada.ID, time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC), 6000)
	addSession(t, db, bob.ID, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 6000)

	sum, err := newService(t, db, 0, time.UTC, now).Summary(context.Background(), ada.ID)
	require.NoError(t, err)

	assert.Equal(t, Today{Minutes: 50, Goal: 120, Progress: 42}, sum.Today)
	assert.Equal(t, []Day{
		{Date: "03/04", Minutes: 10},
		{Date: "03/05", Minutes: 0},
		{Date: "03/06", Minutes: 0},
		{Date: "03/07", Minutes: 0},
		{Date: "03/08", Minutes: 50},
		{Date: "03/09", Minutes: 0},
		{Date: "03/10", Minutes: 50},
	}, sum.Weekly)
}

func TestSummaryProgressIsCapped(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	addSession(t, db, user.ID, now.Add(-2*time.Hour), 3600)

	sum, err := newService(t, db, 30, time.UTC, now).Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, Today{Minutes: 60, Goal: 30, Progress: 100}, sum.Today)
}

func TestSummaryUsesLocation(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 16:00 UTC on the 9th is 01:00 on the 10th in Tokyo.
	addSession(t, db, user.ID, time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC), 1200)
	now := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)

	sum, err := newService(t, db, 0, tokyo, now).Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Today.Minutes)
	assert.Equal(t, "03/10", sum.Weekly[6].Date)
	assert.Equal(t, 20, sum.Weekly[6].Minutes)
	assert.Equal(t, 0, sum.Weekly[5].Minutes)
}

func TestHeatmap(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	addSession(t, db, user.ID, time.Date(2023, 3, 9, 12, 0, 0, 0, time.UTC), 6000)
	addSession(t, db, user.ID, time.Date(2023, 3, 10, 12, 0, 0, 0, time.UTC), 600)
	addSession(t, db, user.ID, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), 1500)
	addSession(t, db, user.ID, time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC), 1500)
	addSession(t, db, user.ID, time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC), 30)
	addSession(t, db, user.ID, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 120)

	got, err := newService(t, db, 0, time.UTC, now).Heatmap(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []HeatmapDay{
		{Date: "2023-03-10", Count: 10},
		{Date: "2024-01-02", Count: 50},
		{Date: "2024-03-10", Count: 2},
	}, got)
}

func TestReport(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	addSession(t, db, user.ID, time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC), 6000)
	addSession(t, db, user.ID, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 3000)

	out, err := newService(t, db, 100, time.UTC, now).Report(context.Background(), user.ID, user.Email)
	require.NoError(t, err)
	assert.Contains(t, out, "Focus report for ada@example.com (week ending 2024-03-10)")
	assert.Contains(t, out, "Today: 50m of 1h40m goal (50%)")
	assert.Contains(t, out, "Total: 2h30m over 2 active days")
	assert.Contains(t, out, "Best day: 03/09")
}

func TestProgress(t *testing.T) {
	tests := []struct {
		minutes, goal, want int
	}{
		{0, 120, 0},
		{59, 120, 49},
		{60, 120, 50},
		{1, 200, 1},
		{500, 120, 100},
		{10, 0, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, progress(tc.minutes, tc.goal), "%d/%d", tc.minutes, tc.goal)
	}
}
