package api

import (
	"errors"
	"net/http"

	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
)

// respondWrite answers a timeline write that was stored. Backpressure on the
// follow-up rebuild answers 202: a rebuild already queued will include it.
func (h handlerBase) respondWrite(w http.ResponseWriter, r *http.Request, status int, body writeResponse, res rebuild.Result, err error) {
	if err != nil {
		if errors.Is(err, service.ErrBackpressure) {
			body.Status = statusPending
			writeJSON(w, http.StatusAccepted, body)
			return
		}
		h.fail(w, r, err)
		return
	}
	body.Status = statusOK
	body.Rebuild = newRebuildResponse(res)
	writeJSON(w, status, body)
}

// claim records the request's idempotency key. It reports false, after
// answering the duplicate, when the key was already seen.
func (h handlerBase) claim(w http.ResponseWriter, r *http.Request, key string) bool {
	if key == "" {
		return true
	}
	if h.deps.SeenAndRecord(r.Context(), key) {
		writeJSON(w, http.StatusOK, writeResponse{Status: statusDuplicate})
		return false
	}
	return true
}

// release forgets key so a request that stored nothing can be retried.
func (h handlerBase) release(r *http.Request, key string) {
	if key != "" {
		h.deps.Unrecord(r.Context(), key)
	}
}
