package settings

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/services/api/internal/models"
	"focusd/services/api/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestGetCreatesDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	first, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, first.WorkDuration)
	assert.Equal(t, 5, first.ShortBreakDuration)
	assert.Equal(t, 15, first.LongBreakDuration)
	assert.Equal(t, 50, first.TickVolume)
	assert.Equal(t, "bell", first.AlarmSound)
	assert.True(t, first.NotificationsEnabled)
	assert.Equal(t, 120, first.DailyGoal)

	second, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Settings{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	got, err := svc.Update(ctx, user.ID, Patch{
		WorkDuration:     ptr(50),
		TickVolume:       ptr(0),
		AlertAt25Percent: ptr(true),
		DailyGoal:        ptr(240),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, got.WorkDuration)
	assert.Equal(t, 0, got.TickVolume)
	assert.True(t, got.AlertAt25Percent)
	assert.Equal(t, 240, got.DailyGoal)
	assert.Equal(t, 5, got.ShortBreakDuration)
	assert.Equal(t, 50, got.NotificationVolume)

	goal, err := svc.DailyGoal(ctx, user.ID, 90)
	require.NoError(t, err)
	assert.Equal(t, 240, goal)
}

func TestUpdateAcceptsEchoedObject(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	current, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	current.LongBreakDuration = 20
	current.UserID = 999

	raw, err := json.Marshal(current)
	require.NoError(t, err)

	var patch Patch
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	require.NoError(t, dec.Decode(&patch))

	got, err := svc.Update(ctx, user.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, 20, got.LongBreakDuration)
	assert.Equal(t, user.ID, got.UserID)
}

func TestUpdateValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	tests := []struct {
		name  string
		patch Patch
	}{
		{name: "zero work duration", patch: Patch{WorkDuration: ptr(0)}},
		{name: "negative long break", patch: Patch{LongBreakDuration: ptr(-1)}},
		{name: "volume above range", patch: Patch{TickVolume: ptr(101)}},
		{name: "volume below range", patch: Patch{NotificationVolume: ptr(-1)}},
		{name: "zero daily goal", patch: Patch{DailyGoal: ptr(0)}},
		{name: "empty alarm", patch: Patch{AlarmSound: ptr("")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), user.ID, tc.patch)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestDailyGoalFallback(t *testing.T) {
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	goal, err := svc.DailyGoal(context.Background(), user.ID, 90)
	require.NoError(t, err)
	assert.Equal(t, 90, goal)
}
