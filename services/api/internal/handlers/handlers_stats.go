package handlers

import (
	"net/http"
)

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	summary, err := a.stats.Summary(ctx, userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	days, err := a.stats.Heatmap(ctx, userIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, days)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	userID := userIDFrom(r.Context())
	user, err := a.auth.User(ctx, userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	report, err := a.stats.Report(ctx, userID, user.Email)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}
