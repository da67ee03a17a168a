package handlers

import (
	"net/http"

	"focusd/services/api/internal/sessions"
)

func (a *API) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	var req sessions.RecordInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	session, err := a.sessions.Record(ctx, userIDFrom(r.Context()), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	list, err := a.sessions.List(ctx, userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}
