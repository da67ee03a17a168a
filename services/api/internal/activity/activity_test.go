package activity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/services/api/internal/sessions"
	"focusd/services/api/internal/testutil"
)

type closer struct{ closed *int }

func (c closer) Close() error {
	*c.closed++
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]func(context.Context, []byte) error
	closed   int
}

func (b *fakeBus) Subscribe(_ context.Context, subj, _ string, fn func(context.Context, []byte) error) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[string]func(context.Context, []byte) error{}
	}
	b.handlers[subj] = fn
	return closer{closed: &b.closed}, nil
}

func (b *fakeBus) deliver(t *testing.T, subj string, v any) error {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	b.mu.Lock()
	fn := b.handlers[subj]
	b.mu.Unlock()
	require.NotNil(t, fn, "no handler for %s", subj)
	return fn(context.Background(), data)
}

type failingSink struct{ err error }

func (s failingSink) Insert(context.Context, Entry) error { return s.err }

func TestParseSessionRecorded(t *testing.T) {
	taskID := uint(9)
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	data, err := json.Marshal(sessions.SessionRecordedEvent{
		SessionID:       5,
		UserID:          2,
		TaskID:          &taskID,
		DurationSeconds: 1500,
		StartTime:       start,
		TaskCompleted:   true,
	})
	require.NoError(t, err)

	entry, err := ParseSessionRecorded(data)
	require.NoError(t, err)
	assert.Equal(t, uint(2), entry.UserID)
	assert.Equal(t, ActionSessionRecorded, entry.Action)
	assert.Equal(t, "session", entry.ObjectType)
	assert.Equal(t, "5", entry.ObjectID)
	assert.Equal(t, start.Add(25*time.Minute), entry.CreatedAt)
	assert.JSONEq(t, `{"duration_seconds":1500,"task_completed":true,"task_id":9}`, string(entry.Details))
}

func TestParseRejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name  string
		parse func([]byte) (Entry, error)
		data  string
	}{
		{name: "session not json", parse: ParseSessionRecorded, data: `{`},
		{name: "session missing id", parse: ParseSessionRecorded, data: `{"user_id":1,"duration_seconds":60}`},
		{name: "session missing user", parse: ParseSessionRecorded, data: `{"session_id":1,"duration_seconds":60}`},
		{name: "session zero duration", parse: ParseSessionRecorded, data: `{"session_id":1,"user_id":1}`},
		{name: "task not json", parse: ParseTaskCompleted, data: `[]`},
		{name: "task missing id", parse: ParseTaskCompleted, data: `{"user_id":1}`},
		{name: "task missing user", parse: ParseTaskCompleted, data: `{"task_id":1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.parse([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestIngestorStoresEvents(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "ada@example.com")
	feed, err := NewFeed(db)
	require.NoError(t, err)

	bus := &fakeBus{}
	ingestor, err := NewIngestor(bus, feed, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ingestor.Start(context.Background()))

	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, bus.deliver(t, sessions.SessionRecordedSubject, sessions.SessionRecordedEvent{
		SessionID: 1, UserID: user.ID, DurationSeconds: 1500, StartTime: start,
	}))
	require.NoError(t, bus.deliver(t, sessions.TaskCompletedSubject, sessions.TaskCompletedEvent{
		TaskID: 4, UserID: user.ID, CompletedPomodoros: 2, EstimatedPomodoros: 2, CompletedAt: start.Add(time.Hour),
	}))
	assert.Error(t, bus.deliver(t, sessions.TaskCompletedSubject, map[string]any{"task_id": 0}))

	list, err := feed.List(context.Background(), user.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ActionTaskCompleted, list[0].Action)
	assert.Equal(t, "4", list[0].ObjectID)
	assert.JSONEq(t, `{"completed_pomodoros":2,"estimated_pomodoros":2}`, string(list[0].Details))
	assert.Equal(t, ActionSessionRecorded, list[1].Action)

	require.NoError(t, ingestor.Close())
	assert.Equal(t, 2, bus.closed)
}

func TestIngestorReturnsSinkErrors(t *testing.T) {
	bus := &fakeBus{}
	boom := errors.New("db down")
	ingestor, err := NewIngestor(bus, failingSink{err: boom}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ingestor.Start(context.Background()))

	err = bus.deliver(t, sessions.SessionRecordedSubject, sessions.SessionRecordedEvent{
		SessionID: 1, UserID: 1, DurationSeconds: 60, StartTime: time.Now(),
	})
	assert.ErrorIs(t, err, boom)
}

func TestFeedLimits(t *testing.T) {
	db := testutil.NewDB(t)
	ada := testutil.CreateUser(t, db, "ada@example.com")
	bob := testutil.CreateUser(t, db, "bob@example.com")
	feed, err := NewFeed(db)
	require.NoError(t, err)

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, feed.Insert(context.Background(), Entry{
			UserID: ada.ID, Action: ActionSessionRecorded, ObjectType: "session",
			ObjectID: "x", Details: json.RawMessage(`{}`), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, feed.Insert(context.Background(), Entry{
		UserID: bob.ID, Action: ActionSessionRecorded, ObjectType: "session", CreatedAt: base,
	}))

	list, err := feed.List(context.Background(), ada.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	_, err = feed.List(context.Background(), ada.ID, MaxLimit+1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = feed.List(context.Background(), ada.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	bobs, err := feed.List(context.Background(), bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.JSONEq(t, `{}`, string(bobs[0].Details))
}
