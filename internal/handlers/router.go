package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/gorilla/mux"
)

// Router wires the API surface. The collect endpoints sit beside the read
// API because the external cron service triggers them with plain GETs.
func (h *Handler) Router(db *database.DB, middlewares ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	for _, mw := range middlewares {
		router.Use(mw)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/indicators", h.ListIndicators).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{id}", h.GetIndicator).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{id}", h.InsertPoint).Methods(http.MethodPost)
	api.HandleFunc("/indicators/{id}/views", h.ListViews).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{id}/views", h.RecordView).Methods(http.MethodPost)

	api.HandleFunc("/analytics", h.GetAnalytics).Methods(http.MethodGet)

	api.HandleFunc("/fgi/collect", h.CollectFGI).Methods(http.MethodGet)
	api.HandleFunc("/fgi/history", h.FGIHistory).Methods(http.MethodGet)
	api.HandleFunc("/cnn-indicators/collect", h.CollectCNNIndicators).Methods(http.MethodGet)
	api.HandleFunc("/crypto-fgi/collect", h.CollectCryptoFGI).Methods(http.MethodGet)
	api.HandleFunc("/vix/collect", h.CollectVIX).Methods(http.MethodGet)

	router.HandleFunc("/health", h.health(db)).Methods(http.MethodGet)
	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	return router
}

func (h *Handler) health(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
