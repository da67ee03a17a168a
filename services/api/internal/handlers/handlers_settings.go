package handlers

import (
	"net/http"

	"focusd/services/api/internal/settings"
)

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	s, err := a.settings.Get(ctx, userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Patch
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	s, err := a.settings.Update(ctx, userIDFrom(r.Context()), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}
