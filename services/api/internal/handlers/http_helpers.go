package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"focusd/services/api/internal/activity"
	"focusd/services/api/internal/auth"
	"focusd/services/api/internal/export"
	"focusd/services/api/internal/focusmodes"
	"focusd/services/api/internal/sessions"
	"focusd/services/api/internal/settings"
	"focusd/services/api/internal/tasks"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sessions.ErrInvalid),
		errors.Is(err, tasks.ErrInvalid),
		errors.Is(err, settings.ErrInvalid),
		errors.Is(err, focusmodes.ErrInvalid),
		errors.Is(err, focusmodes.ErrLastFocusMode),
		errors.Is(err, auth.ErrInvalid),
		errors.Is(err, export.ErrInvalid),
		errors.Is(err, activity.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, sessions.ErrForbidden),
		errors.Is(err, auth.ErrEmailTaken):
		return http.StatusForbidden
	case errors.Is(err, sessions.ErrTaskNotFound),
		errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, focusmodes.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrUnavailable):
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with its mapped status. Server errors are logged and replaced by
// a generic message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, status, errors.New("internal server error"))
		return
	}
	respondError(w, status, err)
}
