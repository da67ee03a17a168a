package focusmodes

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

func TestListCreatesDefault(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	modes, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, modes, 1)
	assert.Equal(t, models.DefaultFocusModeName, modes[0].Name)
	assert.True(t, modes[0].IsDefault)
	assert.Equal(t, 25, modes[0].WorkDuration)

	again, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, modes[0].ID, again[0].ID)
}

func TestCreateIgnoresIdentityFields(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "ada@example.com")

	var in Input
	dec := json.NewDecoder(strings.NewReader(`{"id":77,"userId":999,"isDefault":true,"name":"Deep Work","workDuration":50,"ambientVolume":20}`))
	dec.DisallowUnknownFields()
	require.NoError(t, dec.Decode(&in))

	mode, err := svc.Create(ctx, user.ID, in)
	require.NoError(t, err)
	assert.NotEqual(t, uint(77), mode.ID)
	assert.Equal(t, user.ID, mode.UserID)
	assert.False(t, mode.IsDefault)
	assert.Equal(t, "Deep Work", mode.Name)
	assert.Equal(t, 50, mode.WorkDuration)
	assert.Equal(t, 5, mode.ShortBreakDuration)
	assert.Equal(t, 20, mode.AmbientVolume)

	_, err = svc.Create(ctx, user.ID, Input{})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(ctx, user.ID, Input{Name: ptr("x"), AmbientVolume: ptr(150)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	modes, err := svc.List(ctx, ada.ID)
	require.NoError(t, err)
	id := modes[0].ID

	got, err := svc.Update(ctx, ada.ID, id, Input{
		Name:             ptr("Morning"),
		AlertAt25Percent: ptr(true),
		AmbientVolume:    ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Morning", got.Name)
	assert.True(t, got.AlertAt25Percent)
	assert.Zero(t, got.AmbientVolume)
	assert.True(t, got.IsDefault)

	var stored models.FocusMode
	require.NoError(t, db.First(&stored, id).Error)
	assert.Equal(t, "Morning", stored.Name)
	assert.Zero(t, stored.AmbientVolume)

	_, err = svc.Update(ctx, bob.ID, id, Input{Name: ptr("stolen")})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, ada.ID, id, Input{WorkDuration: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteKeepsLastProfile(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")

	modes, err := svc.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, ada.ID, modes[0].ID), ErrLastFocusMode)

	extra, err := svc.Create(ctx, ada.ID, Input{Name: ptr("Evening")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, extra.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, ada.ID, modes[0].ID))

	left, err := svc.List(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, extra.ID, left[0].ID)
}
