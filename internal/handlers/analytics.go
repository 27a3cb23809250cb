package handlers

import "net/http"

// GetAnalytics serves the dashboard analytics widgets in one pass: top
// indicators, daily trend, category breakdown, and data freshness.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.Overview(r.Context())
	if err != nil {
		h.log.Errorw("failed to compute analytics", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch analytics")
		return
	}

	respondJSON(w, http.StatusOK, overview)
}
