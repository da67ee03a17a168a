package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"focusd/pkg/db"
	"focusd/services/api/internal/sessions"
)

const (
	ActionSessionRecorded = "session_recorded"
	ActionTaskCompleted   = "task_completed"

	// StreamName is the JetStream stream carrying focusd domain events.
	StreamName = "FOCUSD_EVENTS"
)

// Entry is one row destined for the activities table.
type Entry struct {
	UserID     uint
	Action     string
	ObjectType string
	ObjectID   string
	Details    json.RawMessage
	CreatedAt  time.Time
}

// Subscriber is the consuming side of the bus. *bus.Bus satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Sink persists activity entries.
type Sink interface {
	Insert(ctx context.Context, e Entry) error
}

// PGSink writes entries through the pgx pool.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) (*PGSink, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PGSink{pool: pool}, nil
}

func (s *PGSink) Insert(ctx context.Context, e Entry) error {
	if len(e.Details) == 0 {
		e.Details = json.RawMessage("{}")
	}
	_, err := db.Exec(ctx, s.pool, `
INSERT INTO activities (user_id, action, object_type, object_id, details, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
`, int64(e.UserID), e.Action, e.ObjectType, e.ObjectID, string(e.Details), e.CreatedAt)
	return err
}

// Ingestor turns session and task events from the bus into activity entries.
type Ingestor struct {
	bus    Subscriber
	sink   Sink
	logger zerolog.Logger

	subMu sync.Mutex
	subs  []io.Closer
}

// NewIngestor constructs an Ingestor for the provided dependencies.
func NewIngestor(bus Subscriber, sink Sink, logger zerolog.Logger) (*Ingestor, error) {
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	return &Ingestor{bus: bus, sink: sink, logger: logger}, nil
}

// Start subscribes to domain events and processes them until ctx is cancelled.
func (i *Ingestor) Start(ctx context.Context) error {
	if i == nil {
		return errors.New("nil ingestor")
	}

	routes := []struct {
		subject string
		durable string
		parse   func([]byte) (Entry, error)
	}{
		{sessions.SessionRecordedSubject, "activity-sessions", ParseSessionRecorded},
		{sessions.TaskCompletedSubject, "activity-tasks", ParseTaskCompleted},
	}

	for _, r := range routes {
		sub, err := i.bus.Subscribe(ctx, r.subject, r.durable, i.handler(r.subject, r.parse))
		if err != nil {
			_ = i.Close()
			return fmt.Errorf("subscribe %s: %w", r.subject, err)
		}
		i.subMu.Lock()
		i.subs = append(i.subs, sub)
		i.subMu.Unlock()
	}
	return nil
}

// Close stops the subscriptions that were created.
func (i *Ingestor) Close() error {
	if i == nil {
		return nil
	}

	i.subMu.Lock()
	defer i.subMu.Unlock()

	var errs []error
	for _, sub := range i.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	i.subs = nil
	return errors.Join(errs...)
}

func (i *Ingestor) handler(subject string, parse func([]byte) (Entry, error)) func(context.Context, []byte) error {
	return func(ctx context.Context, data []byte) error {
		entry, err := parse(data)
		if err != nil {
			i.logger.Warn().Err(err).Str("subject", subject).Msg("malformed event")
			return err
		}
		if err := i.sink.Insert(ctx, entry); err != nil {
			i.logger.Error().Err(err).Str("subject", subject).Uint("user_id", entry.UserID).Msg("insert activity")
			return err
		}
		i.logger.Debug().Str("subject", subject).Str("action", entry.Action).Uint("user_id", entry.UserID).Msg("activity stored")
		return nil
	}
}

// ParseSessionRecorded maps a session-recorded event to an activity entry.
func ParseSessionRecorded(data []byte) (Entry, error) {
	var evt sessions.SessionRecordedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return Entry{}, err
	}
	if evt.SessionID == 0 {
		return Entry{}, errors.New("session_id missing from event")
	}
	if evt.UserID == 0 {
		return Entry{}, errors.New("user_id missing from event")
	}
	if evt.DurationSeconds <= 0 {
		return Entry{}, errors.New("duration_seconds must be positive")
	}

	details := map[string]any{
		"duration_seconds": evt.DurationSeconds,
		"task_completed":   evt.TaskCompleted,
	}
	if evt.TaskID != nil {
		details["task_id"] = *evt.TaskID
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return Entry{}, err
	}

	createdAt := evt.StartTime.Add(time.Duration(evt.DurationSeconds) * time.Second)
	if evt.StartTime.IsZero() {
		createdAt = time.Now()
	}
	return Entry{
		UserID:     evt.UserID,
		Action:     ActionSessionRecorded,
		ObjectType: "session",
		ObjectID:   strconv.FormatUint(uint64(evt.SessionID), 10),
		Details:    raw,
		CreatedAt:  createdAt.UTC(),
	}, nil
}

// ParseTaskCompleted maps a task-completed event to an activity entry.
func ParseTaskCompleted(data []byte) (Entry, error) {
	var evt sessions.TaskCompletedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return Entry{}, err
	}
	if evt.TaskID == 0 {
		return Entry{}, errors.New("task_id missing from event")
	}
	if evt.UserID == 0 {
		return Entry{}, errors.New("user_id missing from event")
	}

	raw, err := json.Marshal(map[string]any{
		"completed_pomodoros": evt.CompletedPomodoros,
		"estimated_pomodoros": evt.EstimatedPomodoros,
	})
	if err != nil {
		return Entry{}, err
	}

	createdAt := evt.CompletedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Entry{
		UserID:     evt.UserID,
		Action:     ActionTaskCompleted,
		ObjectType: "task",
		ObjectID:   strconv.FormatUint(uint64(evt.TaskID), 10),
		Details:    raw,
		CreatedAt:  createdAt.UTC(),
	}, nil
}
