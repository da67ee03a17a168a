package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const exportTimeout = 30 * time.Second

type exportRequest struct {
	Format string `json:"format"`
}

func (a *API) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	res, err := a.exports.Export(ctx, userIDFrom(r.Context()), req.Format)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
