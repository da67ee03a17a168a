package handlers

import (
	"net/http"

	"focusd/services/api/internal/focusmodes"
)

func (a *API) handleListFocusModes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	list, err := a.focusModes.List(ctx, userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (a *API) handleCreateFocusMode(w http.ResponseWriter, r *http.Request) {
	var req focusmodes.Input
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	mode, err := a.focusModes.Create(ctx, userIDFrom(r.Context()), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, mode)
}

func (a *API) handleUpdateFocusMode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req focusmodes.Input
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	mode, err := a.focusModes.Update(ctx, userIDFrom(r.Context()), id, req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mode)
}

func (a *API) handleDeleteFocusMode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.focusModes.Delete(ctx, userIDFrom(r.Context()), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
