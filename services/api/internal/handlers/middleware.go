package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"focusd/services/api/internal/auth"
)

type ctxKey struct{}

var errMissingToken = errors.New("missing bearer token")

func withUserID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func userIDFrom(ctx context.Context) uint {
	id, _ := ctx.Value(ctxKey{}).(uint)
	return id
}

// requireUser rejects requests without a valid bearer token and stores the caller's id.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondError(w, http.StatusUnauthorized, errMissingToken)
			return
		}

		ctx, cancel := withTimeout(r.Context())
		userID, err := a.auth.Authenticate(ctx, strings.TrimSpace(token))
		cancel()
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				respondError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
				return
			}
			respondDomainError(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Uint("user_id", userID)
		})
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}
