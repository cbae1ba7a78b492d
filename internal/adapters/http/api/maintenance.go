package api

import (
	"net/http"

	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// MaintenanceHandler exposes the repair operations.
type MaintenanceHandler struct {
	handlerBase
}

type normalizeResponse struct {
	Status  string `json:"status"`
	Changed int    `json:"changed"`
}

// HandleRebuild handles POST /rebuild. A full queue answers 429.
func (h *MaintenanceHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.RebuildAll(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("rebuild", err))
		return
	}
	h.logger.Info(r.Context(), "rebuild requested",
		logger.String("actor", ActorFrom(r.Context())),
		logger.Int("updated_competitors", res.UpdatedCompetitors),
	)
	writeJSON(w, http.StatusOK, writeResponse{Status: statusOK, Rebuild: newRebuildResponse(res)})
}

// HandleNormalize handles POST /normalize.
func (h *MaintenanceHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.Normalize(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("normalize", err))
		return
	}
	h.logger.Info(r.Context(), "normalize requested",
		logger.String("actor", ActorFrom(r.Context())),
		logger.Int("changed", changed),
	)
	writeJSON(w, http.StatusOK, normalizeResponse{Status: statusOK, Changed: changed})
}
