package api

import (
	"net/http"

	service "github.com/mcronin4/scrappers-cup/internal/app"
)

// CompetitorsHandler handles roster writes.
type CompetitorsHandler struct {
	handlerBase
}

// HandleCreate handles POST /competitors. New competitors join at the bottom.
func (h *CompetitorsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "create competitor"
	var req competitorRequest
	if !h.decode(w, r, op, schemaCompetitorCreate, &req) {
		return
	}
	c, err := h.deps.CreateCompetitor(r.Context(), service.CompetitorInput{
		ID:       req.ID,
		Name:     req.Name,
		Inactive: req.Active != nil && !*req.Active,
	})
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newCompetitorResponse(c))
}

// HandleUpdate handles PATCH /competitors/{id}, toggling leaderboard visibility.
func (h *CompetitorsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "update competitor"
	var req competitorUpdateRequest
	if !h.decode(w, r, op, schemaCompetitorUpdate, &req) {
		return
	}
	c, err := h.deps.SetCompetitorActive(r.Context(), r.PathValue("id"), req.Active)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newCompetitorResponse(c))
}
