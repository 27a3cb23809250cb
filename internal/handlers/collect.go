package handlers

import (
	"net/http"

	"github.com/DanielZ1337/finance-index-trackers/internal/models"
)

// Collector trigger endpoints. An external scheduler issues GETs on a
// schedule; retries are its job, not the collectors'. Upstream failures come
// back as {stored:false, error} so the scheduler log shows what went wrong.

func (h *Handler) CollectFGI(w http.ResponseWriter, r *http.Request) {
	result, err := h.cnn.CollectFGI(r.Context())
	h.metrics.ObserveCollectorRun("fgi", err)
	if err != nil {
		h.log.Errorw("CNN FGI collection failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"stored": false,
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) CollectCNNIndicators(w http.ResponseWriter, r *http.Request) {
	result, err := h.cnn.CollectIndicators(r.Context())
	h.metrics.ObserveCollectorRun("cnn-indicators", err)
	if err != nil {
		h.log.Errorw("CNN indicators collection failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"stored": false,
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) CollectCryptoFGI(w http.ResponseWriter, r *http.Request) {
	result, err := h.crypto.Collect(r.Context())
	h.metrics.ObserveCollectorRun("crypto-fgi", err)
	if err != nil {
		h.log.Errorw("crypto FGI collection failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"stored": false,
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) CollectVIX(w http.ResponseWriter, r *http.Request) {
	result, err := h.vix.Collect(r.Context())
	h.metrics.ObserveCollectorRun("vix", err)
	if err != nil {
		h.log.Errorw("VIX collection failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"stored": false,
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// FGIHistory reads the deprecated fgi_hourly table, kept for clients that
// predate the generic indicator_data table.
func (h *Handler) FGIHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.FGIHistory(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.log.Errorw("failed to read FGI history", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch FGI history")
		return
	}

	if history == nil {
		history = []models.FGIHourly{}
	}
	respondJSON(w, http.StatusOK, history)
}
