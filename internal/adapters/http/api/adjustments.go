package api

import (
	"net/http"

	service "github.com/mcronin4/scrappers-cup/internal/app"
)

// AdjustmentsHandler handles manual rank adjustments.
type AdjustmentsHandler struct {
	handlerBase
}

// HandleRecord handles POST /adjustments.
func (h *AdjustmentsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "record adjustment"
	var req adjustmentRequest
	if !h.decode(w, r, op, schemaAdjustment, &req) {
		return
	}
	key := idempotencyKey(r, "adjustments")
	if !h.claim(w, r, key) {
		return
	}

	evt, res, err := h.deps.RecordManualAdjustment(r.Context(), service.AdjustmentInput{
		CompetitorID: req.CompetitorID,
		TargetRank:   req.TargetRank,
		Reason:       req.Reason,
		Actor:        ActorFrom(r.Context()),
	})
	if err != nil && evt.ID == "" {
		h.release(r, key)
		h.fail(w, r, Wrap(op, err))
		return
	}
	h.respondWrite(w, r, http.StatusCreated, writeResponse{Event: newEventResponse(evt)}, res, Wrap(op, err))
}
