package api

import "net/http"

// EventsHandler exposes the ranking timeline.
type EventsHandler struct {
	handlerBase
}

// HandleListEvents handles GET /events, listing the timeline in replay order
// with the audit fields of the last rebuild.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.Timeline(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("list events", err))
		return
	}
	items := make([]*eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, newEventResponse(e))
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// HandleDelete handles DELETE /events/{id}.
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "delete event"
	res, err := h.deps.DeleteEvent(r.Context(), r.PathValue("id"))
	h.respondWrite(w, r, http.StatusOK, writeResponse{}, res, Wrap(op, err))
}
