package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

func (a *API) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = v
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	list, err := a.activity.List(ctx, userIDFrom(r.Context()), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}
