// Package handlers is the stateless HTTP boundary: it translates query and
// body parameters into service calls and always answers JSON, with a
// {"error": ...} envelope on failure.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/analytics"
	"github.com/DanielZ1337/finance-index-trackers/internal/catalog"
	"github.com/DanielZ1337/finance-index-trackers/internal/collectors"
	"github.com/DanielZ1337/finance-index-trackers/internal/monitoring"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/DanielZ1337/finance-index-trackers/internal/views"
	"go.uber.org/zap"
)

type Handler struct {
	catalog   *catalog.Catalog
	store     *timeseries.Store
	ledger    *views.Ledger
	analytics *analytics.Service
	cnn       *collectors.CNNCollector
	crypto    *collectors.CryptoFGICollector
	vix       *collectors.VIXCollector
	metrics   *monitoring.Metrics
	log       *zap.SugaredLogger
}

func New(
	cat *catalog.Catalog,
	store *timeseries.Store,
	ledger *views.Ledger,
	svc *analytics.Service,
	cnn *collectors.CNNCollector,
	crypto *collectors.CryptoFGICollector,
	vix *collectors.VIXCollector,
	metrics *monitoring.Metrics,
	log *zap.SugaredLogger,
) *Handler {
	return &Handler{
		catalog:   cat,
		store:     store,
		ledger:    ledger,
		analytics: svc,
		cnn:       cnn,
		crypto:    crypto,
		vix:       vix,
		metrics:   metrics,
		log:       log,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// rangeStart maps a range token to the window's start instant. Zero means
// unbounded ("all").
func rangeStart(rangeToken string, now time.Time) time.Time {
	switch rangeToken {
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.AddDate(0, 0, -7)
	case "90d":
		return now.AddDate(0, 0, -90)
	case "1y":
		return now.AddDate(-1, 0, 0)
	case "all":
		return time.Time{}
	default: // 30d
		return now.AddDate(0, 0, -30)
	}
}

// clientIPHash hashes the caller address so the ledger never stores a raw
// IP.
func clientIPHash(r *http.Request) string {
	ip := ""
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if real := r.Header.Get("X-Real-IP"); real != "" {
		ip = real
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	if ip == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
