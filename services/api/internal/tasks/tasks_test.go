package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"focusd/services/api/internal/models"
	"focusd/services/api/internal/testutil"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc, err := NewService(db, zerolog.Nop())
	require.NoError(t, err)
	return svc, db
}

func ptr[T any](v T) *T { return &v }

func TestCreateDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	user := testutil.CreateUser(t, db, "ada@example.com")

	task, err := svc.Create(ctx, user.ID, CreateInput{Title: "  Write report  "})
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, 1, task.EstimatedPomodoros)
	assert.Zero(t, task.CompletedPomodoros)
	assert.False(t, task.IsCompleted)
	assert.Nil(t, task.Description)

	_, err = svc.Create(ctx, user.ID, CreateInput{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, user.ID, CreateInput{Title: "x", EstimatedPomodoros: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestListHidesArchivedAndForeignTasks(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	first, err := svc.Create(ctx, ada.ID, CreateInput{Title: "first"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, ada.ID, CreateInput{Title: "second"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob.ID, CreateInput{Title: "bob's"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, ada.ID, first.ID, UpdateInput{IsArchived: ptr(true)})
	require.NoError(t, err)

	active, err := svc.List(ctx, ada.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := svc.List(ctx, ada.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestOwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	task, err := svc.Create(ctx, ada.ID, CreateInput{Title: "private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, bob.ID, task.ID, UpdateInput{Title: ptr("stolen")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, task.ID), ErrNotFound)

	got, err := svc.Get(ctx, ada.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
}

func TestUpdateLeavesProgressAlone(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	row := testutil.CreateTask(t, db, user.ID, 3)
	require.NoError(t, db.Model(&row).Updates(map[string]any{"completed_pomodoros": 2}).Error)

	got, err := svc.Update(ctx, user.ID, row.ID, UpdateInput{
		Title:              ptr("renamed"),
		Description:        ptr("  notes "),
		EstimatedPomodoros: ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "notes", *got.Description)
	assert.Equal(t, 1, got.EstimatedPomodoros)
	assert.Equal(t, 2, got.CompletedPomodoros)
	assert.False(t, got.IsCompleted)

	_, err = svc.Update(ctx, user.ID, row.ID, UpdateInput{EstimatedPomodoros: ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteKeepsSessions(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	row := testutil.CreateTask(t, db, user.ID, 2)

	start := time.Now().UTC()
	session := models.PomodoroSession{
		UserID:          user.ID,
		TaskID:          &row.ID,
		DurationSeconds: 1500,
		StartTime:       start,
		EndTime:         start.Add(1500 * time.Second),
	}
	require.NoError(t, db.Create(&session).Error)

	require.NoError(t, svc.Delete(ctx, user.ID, row.ID))

	_, err := svc.Get(ctx, user.ID, row.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var kept models.PomodoroSession
	require.NoError(t, db.First(&kept, session.ID).Error)
	assert.Nil(t, kept.TaskID)
}
