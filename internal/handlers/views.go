package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/DanielZ1337/finance-index-trackers/internal/middleware"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/gorilla/mux"
	ua "github.com/mileusna/useragent"
)

// structuredUserAgent mirrors what the dashboard stores for attribution:
// parsed browser/os/device plus the raw string for anything the parser
// missed.
type structuredUserAgent struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	Raw     string `json:"raw"`
}

func parseUserAgent(raw string) string {
	parsed := ua.Parse(raw)

	device := "desktop"
	switch {
	case parsed.Mobile:
		device = "mobile"
	case parsed.Tablet:
		device = "tablet"
	case parsed.Bot:
		device = "bot"
	}

	browser := parsed.Name
	if browser == "" {
		browser = "Unknown"
	}
	if parsed.Version != "" {
		browser += " " + parsed.Version
	}

	os := parsed.OS
	if os == "" {
		os = "Unknown"
	}
	if parsed.OSVersion != "" {
		os += " " + parsed.OSVersion
	}

	data, err := json.Marshal(structuredUserAgent{
		Browser: browser,
		OS:      os,
		Device:  device,
		Raw:     raw,
	})
	if err != nil {
		return raw
	}
	return string(data)
}

// RecordView records an explicit view attribution call from the client.
// Unlike the detail-view side effect this reports the outcome, but a failure
// still only affects this endpoint, never the data endpoints.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	userID := middleware.UserID(r.Context())
	ev, err := h.ledger.Record(r.Context(), models.ViewEvent{
		IndicatorID: id,
		UserAgent:   parseUserAgent(r.UserAgent()),
		IPHash:      clientIPHash(r),
		UserID:      userID,
		SessionID:   middleware.SessionID(r.Context()),
	})
	if err != nil {
		h.metrics.ObserveViewWriteError()
		h.log.Errorw("failed to record view",
			"request_id", middleware.RequestID(r.Context()),
			"indicator_id", id,
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "failed to record view")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"viewId":        ev.ID,
		"authenticated": userID != nil,
	})
}

// ListViews lists view events for an indicator with viewer display names.
func (h *Handler) ListViews(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := queryInt(r, "limit", 50)

	list, err := h.ledger.List(r.Context(), id, limit, queryInt(r, "offset", 0))
	if err != nil {
		h.log.Errorw("failed to list views", "indicator_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch views")
		return
	}

	if list == nil {
		list = []models.ViewWithUser{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"views":   list,
		"total":   len(list),
		"hasMore": len(list) == limit,
	})
}
