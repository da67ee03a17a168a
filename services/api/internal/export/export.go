// Package export packages a user's full history into a compressed document in object storage.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"focusd/services/api/internal/auth"
	"focusd/services/api/internal/focusmodes"
	"focusd/services/api/internal/sessions"
	"focusd/services/api/internal/settings"
	"focusd/services/api/internal/tasks"
)

var (
	ErrInvalid     = errors.New("invalid export request")
	ErrUnavailable = errors.New("export storage is not configured")
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ObjectStore is the subset of the S3 client used for exports.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type UserSource interface {
	User(ctx context.Context, userID uint) (auth.User, error)
}

type SettingsSource interface {
	Get(ctx context.Context, userID uint) (settings.Settings, error)
}

type TaskSource interface {
	List(ctx context.Context, userID uint, includeArchived bool) ([]tasks.Task, error)
}

type SessionSource interface {
	List(ctx context.Context, userID uint) ([]sessions.Session, error)
}

type FocusModeSource interface {
	List(ctx context.Context, userID uint) ([]focusmodes.FocusMode, error)
}

// Document is the exported history.
type Document struct {
	ExportedAt time.Time              `json:"exportedAt"`
	User       auth.User              `json:"user"`
	Settings   settings.Settings      `json:"settings"`
	Tasks      []tasks.Task           `json:"tasks"`
	Sessions   []sessions.Session     `json:"sessions"`
	FocusModes []focusmodes.FocusMode `json:"focusModes"`
}

// Result describes an uploaded export.
type Result struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
}

// Options wires the export service. Store and Bucket may be empty, which disables uploads.
type Options struct {
	Users      UserSource
	Settings   SettingsSource
	Tasks      TaskSource
	Sessions   SessionSource
	FocusModes FocusModeSource
	Store      ObjectStore
	Bucket     string
	URLTTL     time.Duration
	Logger     zerolog.Logger
}

type Service struct {
	opts Options
	now  func() time.Time
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Users == nil:
		return nil, errors.New("user source is required")
	case opts.Settings == nil:
		return nil, errors.New("settings source is required")
	case opts.Tasks == nil:
		return nil, errors.New("task source is required")
	case opts.Sessions == nil:
		return nil, errors.New("session source is required")
	case opts.FocusModes == nil:
		return nil, errors.New("focus mode source is required")
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = 15 * time.Minute
	}
	return &Service{opts: opts, now: time.Now}, nil
}

// Enabled reports whether exports can be uploaded.
func (s *Service) Enabled() bool {
	return s.opts.Store != nil && s.opts.Bucket != ""
}

// Build collects the user's history.
func (s *Service) Build(ctx context.Context, userID uint) (Document, error) {
	doc := Document{ExportedAt: s.now().UTC()}
	var err error
	if doc.User, err = s.opts.Users.User(ctx, userID); err != nil {
		return Document{}, fmt.Errorf("load user: %w", err)
	}
	if doc.Settings, err = s.opts.Settings.Get(ctx, userID); err != nil {
		return Document{}, fmt.Errorf("load settings: %w", err)
	}
	if doc.Tasks, err = s.opts.Tasks.List(ctx, userID, true); err != nil {
		return Document{}, fmt.Errorf("load tasks: %w", err)
	}
	if doc.Sessions, err = s.opts.Sessions.List(ctx, userID); err != nil {
		return Document{}, fmt.Errorf("load sessions: %w", err)
	}
	if doc.FocusModes, err = s.opts.FocusModes.List(ctx, userID); err != nil {
		return Document{}, fmt.Errorf("load focus modes: %w", err)
	}
	return doc, nil
}

// Export builds, encodes, compresses and uploads the user's history and returns a download link.
func (s *Service) Export(ctx context.Context, userID uint, format string) (Result, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return Result{}, fmt.Errorf("%w: format must be %q or %q", ErrInvalid, FormatJSON, FormatYAML)
	}
	if !s.Enabled() {
		return Result{}, ErrUnavailable
	}

	doc, err := s.Build(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	raw, err := Encode(doc, format)
	if err != nil {
		return Result{}, err
	}
	compressed, err := Compress(raw)
	if err != nil {
		return Result{}, err
	}

	sum := sha256.Sum256(compressed)
	digest := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("exports/%d/%s.%s.zst", userID, uuid.NewString(), format)
	size := int64(len(compressed))

	if err := s.opts.Store.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader(compressed), size, digest); err != nil {
		return Result{}, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.opts.Store.PresignGet(ctx, s.opts.Bucket, key, s.opts.URLTTL)
	if err != nil {
		return Result{}, fmt.Errorf("presign export: %w", err)
	}

	s.opts.Logger.Info().
		Uint("user_id", userID).
		Str("key", key).
		Int64("size", size).
		Msg("export uploaded")

	return Result{
		Key:       key,
		URL:       url,
		ExpiresAt: s.now().UTC().Add(s.opts.URLTTL),
		Format:    format,
		Size:      size,
		SHA256:    digest,
	}, nil
}

// Encode serialises doc. YAML output keeps the JSON field names.
func Encode(doc Document, format string) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	switch format {
	case FormatJSON:
		return raw, nil
	case FormatYAML:
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalid, format)
	}
}

// Compress zstd-encodes data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd write: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}
