package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/analytics"
	"github.com/DanielZ1337/finance-index-trackers/internal/middleware"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// ListIndicators serves the dashboard listing: every active indicator with
// its latest value, data count, and trailing-30d view count, filterable and
// sortable via query string.
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category := q.Get("category")
	if category == "all" {
		category = ""
	}

	list, err := h.analytics.ListIndicators(r.Context(), analytics.ListParams{
		Category: category,
		Search:   q.Get("search"),
		SortBy:   q.Get("sortBy"),
		SortDir:  q.Get("sortDir"),
		Limit:    queryInt(r, "limit", 100),
		Offset:   queryInt(r, "offset", 0),
	})
	if err != nil {
		h.log.Errorw("failed to list indicators", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch indicators")
		return
	}

	if list == nil {
		list = []models.IndicatorWithLatest{}
	}
	respondJSON(w, http.StatusOK, list)
}

type detailResponse struct {
	Indicator *models.Indicator  `json:"indicator"`
	Data      []models.DataPoint `json:"data"`
}

// GetIndicator serves the detail view with a time-windowed series and, as a
// side effect, records a view event. View recording is best-effort: a ledger
// failure never changes the response.
func (h *Handler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	indicator, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.log.Errorw("failed to load indicator", "indicator_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch indicator details")
		return
	}
	if indicator == nil || !indicator.IsActive {
		respondError(w, http.StatusNotFound, "indicator not found")
		return
	}

	h.recordViewBestEffort(r, id, r.UserAgent())

	from := rangeStart(r.URL.Query().Get("range"), time.Now())
	data, err := h.store.QueryRange(r.Context(), id, timeseries.RangeQuery{
		From:  from,
		Limit: 1000,
	})
	if err != nil {
		h.log.Errorw("failed to query range", "indicator_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch indicator details")
		return
	}

	if data == nil {
		data = []models.DataPoint{}
	}
	respondJSON(w, http.StatusOK, detailResponse{Indicator: indicator, Data: data})
}

func (h *Handler) recordViewBestEffort(r *http.Request, indicatorID, userAgent string) {
	_, err := h.ledger.Record(r.Context(), models.ViewEvent{
		IndicatorID: indicatorID,
		UserAgent:   userAgent,
		IPHash:      clientIPHash(r),
		UserID:      middleware.UserID(r.Context()),
		SessionID:   middleware.SessionID(r.Context()),
	})
	if err != nil {
		h.metrics.ObserveViewWriteError()
		h.log.Warnw("failed to record view",
			"request_id", middleware.RequestID(r.Context()),
			"indicator_id", indicatorID,
			"error", err,
		)
	}
}

type insertPointRequest struct {
	Value    *decimal.Decimal `json:"value"`
	Label    string           `json:"label"`
	Metadata json.RawMessage  `json:"metadata"`
}

// InsertPoint handles manual data-point inserts. The observation time is the
// request time; duplicates surface as inserted=false, not as errors.
func (h *Handler) InsertPoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req insertPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == nil {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	indicator, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.log.Errorw("failed to load indicator", "indicator_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to insert indicator data")
		return
	}
	if indicator == nil || !indicator.IsActive {
		respondError(w, http.StatusNotFound, "indicator not found")
		return
	}

	ts := time.Now().UTC()
	inserted, err := h.store.UpsertPoint(r.Context(), models.DataPoint{
		IndicatorID: id,
		TsUTC:       ts,
		Value:       *req.Value,
		Label:       req.Label,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.log.Errorw("failed to insert data point", "indicator_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to insert indicator data")
		return
	}

	h.metrics.ObservePoint(id, inserted)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"timestamp":    ts,
		"indicator_id": id,
		"value":        req.Value,
		"label":        req.Label,
		"inserted":     inserted,
	})
}
