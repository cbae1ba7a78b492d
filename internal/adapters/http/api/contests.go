package api

import (
	"net/http"

	service "github.com/mcronin4/scrappers-cup/internal/app"
)

// ContestsHandler handles contest writes.
type ContestsHandler struct {
	handlerBase
}

// HandleRecord handles POST /contests.
func (h *ContestsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "record contest"
	var req contestRequest
	if !h.decode(w, r, op, schemaContest, &req) {
		return
	}
	key := idempotencyKey(r, "contests")
	if !h.claim(w, r, key) {
		return
	}

	in := service.ContestInput{
		Side1ID: req.Side1ID,
		Side2ID: req.Side2ID,
		Score:   req.score(),
		Actor:   ActorFrom(r.Context()),
	}
	if req.PlayedAt != nil {
		in.PlayedAt = *req.PlayedAt
	}
	rec, res, err := h.deps.RecordContest(r.Context(), in)
	if err != nil && rec.ID == "" {
		h.release(r, key)
		h.fail(w, r, Wrap(op, err))
		return
	}
	h.respondWrite(w, r, http.StatusCreated, writeResponse{Contest: newContestResponse(rec)}, res, Wrap(op, err))
}

// HandleEdit handles PUT /contests/{id}, replacing the stored score.
func (h *ContestsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	const op = "edit contest"
	var req scoreRequest
	if !h.decode(w, r, op, schemaContestEdit, &req) {
		return
	}
	rec, res, err := h.deps.UpdateContest(r.Context(), r.PathValue("id"), req.score())
	if err != nil && rec.ID == "" {
		h.fail(w, r, Wrap(op, err))
		return
	}
	h.respondWrite(w, r, http.StatusOK, writeResponse{Contest: newContestResponse(rec)}, res, Wrap(op, err))
}
