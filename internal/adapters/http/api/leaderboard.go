package api

import "net/http"

// LeaderboardHandler serves the read views.
type LeaderboardHandler struct {
	handlerBase
}

// HandleGetLeaderboard handles GET /leaderboard: active competitors in ladder
// order with a dense display rank.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.GetActiveLeaderboard(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("leaderboard", err))
		return
	}
	writeJSON(w, http.StatusOK, newList(entries))
}

// HandleGetRoster handles GET /roster: every competitor, inactive included.
func (h *LeaderboardHandler) HandleGetRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Roster(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("roster", err))
		return
	}
	writeJSON(w, http.StatusOK, newList(entries))
}
