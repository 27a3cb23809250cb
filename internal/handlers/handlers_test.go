package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielZ1337/finance-index-trackers/internal/analytics"
	"github.com/DanielZ1337/finance-index-trackers/internal/cache"
	"github.com/DanielZ1337/finance-index-trackers/internal/catalog"
	"github.com/DanielZ1337/finance-index-trackers/internal/collectors"
	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/logger"
	"github.com/DanielZ1337/finance-index-trackers/internal/monitoring"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/DanielZ1337/finance-index-trackers/internal/views"
)

// promauto registers on the default registry, so the test binary shares one
// metrics instance.
var testMetrics = monitoring.New("handlers_test")

type fixture struct {
	handler *Handler
	mock    sqlmock.Sqlmock
}

// newFixture wires a Handler over one sqlmock connection. Collector upstreams
// point at upstreamURL; tests that never trigger a collector pass "".
func newFixture(t *testing.T, upstreamURL string) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	wrapped := database.New(db)
	log := logger.NewNop()
	store := timeseries.NewStore(wrapped, log)
	fetcher := collectors.NewFetcher(0, log)

	h := New(
		catalog.New(wrapped),
		store,
		views.NewLedger(wrapped),
		analytics.NewService(wrapped, cache.NewMemory(), time.Minute, log),
		collectors.NewCNNCollector(fetcher, store, upstreamURL, log),
		collectors.NewCryptoFGICollector(fetcher, store, upstreamURL, log),
		collectors.NewVIXCollector(fetcher, store, upstreamURL, "test-key", log),
		testMetrics,
		log,
	)
	return &fixture{handler: h, mock: mock}
}

var catalogColumns = []string{"id", "name", "description", "category", "source", "is_active", "created_at"}

func indicatorRow(id, name string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(catalogColumns).
		AddRow(id, name, "", "sentiment", "CNN", active, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

var dataColumns = []string{"id", "indicator_id", "ts_utc", "value", "label", "metadata", "created_at"}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetIndicator(t *testing.T) {
	t.Run("returns detail and records a view", func(t *testing.T) {
		f := newFixture(t, "")

		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("cnn-fgi").
			WillReturnRows(indicatorRow("cnn-fgi", "CNN Fear & Greed Index", true))
		f.mock.ExpectQuery("INSERT INTO indicator_views").
			WillReturnRows(sqlmock.NewRows([]string{"id", "viewed_at"}).AddRow(int64(1), ts))
		f.mock.ExpectQuery("SELECT id, indicator_id, ts_utc").
			WillReturnRows(sqlmock.NewRows(dataColumns).
				AddRow(int64(9), "cnn-fgi", ts, "55", "Greed", nil, ts))

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/indicators/cnn-fgi", nil),
			map[string]string{"id": "cnn-fgi"})
		rec := httptest.NewRecorder()
		f.handler.GetIndicator(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		require.NotNil(t, body["indicator"])
		data := body["data"].([]interface{})
		require.Len(t, data, 1)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("ledger failure never changes the response", func(t *testing.T) {
		f := newFixture(t, "")

		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("cnn-fgi").
			WillReturnRows(indicatorRow("cnn-fgi", "CNN Fear & Greed Index", true))
		f.mock.ExpectQuery("INSERT INTO indicator_views").
			WillReturnError(assert.AnError)
		f.mock.ExpectQuery("SELECT id, indicator_id, ts_utc").
			WillReturnRows(sqlmock.NewRows(dataColumns).
				AddRow(int64(9), "cnn-fgi", ts, "55", "Greed", nil, ts))

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/indicators/cnn-fgi", nil),
			map[string]string{"id": "cnn-fgi"})
		rec := httptest.NewRecorder()
		f.handler.GetIndicator(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.NotNil(t, body["indicator"])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown indicator is 404", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(catalogColumns))

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/indicators/nope", nil),
			map[string]string{"id": "nope"})
		rec := httptest.NewRecorder()
		f.handler.GetIndicator(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "indicator not found", decodeBody(t, rec)["error"])
	})

	t.Run("deactivated indicator is 404", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("cnn-fgi").
			WillReturnRows(indicatorRow("cnn-fgi", "CNN Fear & Greed Index", false))

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/indicators/cnn-fgi", nil),
			map[string]string{"id": "cnn-fgi"})
		rec := httptest.NewRecorder()
		f.handler.GetIndicator(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestInsertPoint(t *testing.T) {
	newReq := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/indicators/vix", strings.NewReader(body))
		return mux.SetURLVars(req, map[string]string{"id": "vix"})
	}

	t.Run("stores the point with the request time", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("vix").
			WillReturnRows(indicatorRow("vix", "VIX Volatility Index", true))
		f.mock.ExpectExec("INSERT INTO indicator_data").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		f.handler.InsertPoint(rec, newReq(`{"value": 23.45, "label": "Elevated Volatility"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, true, body["inserted"])
		assert.Equal(t, "vix", body["indicator_id"])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("duplicate reports inserted false, still 200", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("vix").
			WillReturnRows(indicatorRow("vix", "VIX Volatility Index", true))
		f.mock.ExpectExec("INSERT INTO indicator_data").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rec := httptest.NewRecorder()
		f.handler.InsertPoint(rec, newReq(`{"value": 23.45}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeBody(t, rec)["inserted"])
	})

	t.Run("missing value is 400", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.handler.InsertPoint(rec, newReq(`{"label": "no value"}`))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "value is required", decodeBody(t, rec)["error"])
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.handler.InsertPoint(rec, newReq(`{not json`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown indicator is 404", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs("vix").
			WillReturnRows(sqlmock.NewRows(catalogColumns))

		rec := httptest.NewRecorder()
		f.handler.InsertPoint(rec, newReq(`{"value": 1}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecordView(t *testing.T) {
	t.Run("stores structured user agent and reports view id", func(t *testing.T) {
		f := newFixture(t, "")

		viewedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		f.mock.ExpectQuery("INSERT INTO indicator_views").
			WillReturnRows(sqlmock.NewRows([]string{"id", "viewed_at"}).AddRow(int64(77), viewedAt))

		req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/v1/indicators/cnn-fgi/views", nil),
			map[string]string{"id": "cnn-fgi"})
		rec := httptest.NewRecorder()
		f.handler.RecordView(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(77), body["viewId"])
		assert.Equal(t, false, body["authenticated"])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("ledger failure is 500 on this endpoint", func(t *testing.T) {
		f := newFixture(t, "")

		f.mock.ExpectQuery("INSERT INTO indicator_views").
			WillReturnError(assert.AnError)

		req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/v1/indicators/cnn-fgi/views", nil),
			map[string]string{"id": "cnn-fgi"})
		rec := httptest.NewRecorder()
		f.handler.RecordView(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestListViews(t *testing.T) {
	f := newFixture(t, "")

	viewedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "indicator_id", "viewed_at", "user_agent", "name", "authenticated"}).
		AddRow(int64(2), "cnn-fgi", viewedAt, "Mozilla/5.0", nil, false).
		AddRow(int64(1), "cnn-fgi", viewedAt, "Mozilla/5.0", nil, false)
	f.mock.ExpectQuery("SELECT v.id, v.indicator_id").
		WithArgs("cnn-fgi", 2, 0).
		WillReturnRows(rows)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/indicators/cnn-fgi/views?limit=2", nil),
		map[string]string{"id": "cnn-fgi"})
	rec := httptest.NewRecorder()
	f.handler.ListViews(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total"])
	// A full page signals more rows may follow.
	assert.Equal(t, true, body["hasMore"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListIndicatorsEmpty(t *testing.T) {
	f := newFixture(t, "")

	f.mock.ExpectQuery("SELECT i.id, i.name").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "category", "source", "is_active", "created_at",
			"value", "label", "ts_utc", "view_count", "data_count",
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators?category=all", nil)
	rec := httptest.NewRecorder()
	f.handler.ListIndicators(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// An empty listing is a JSON array, never null.
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCollectEndpoints(t *testing.T) {
	t.Run("upstream failure reports stored false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		f := newFixture(t, srv.URL)

		rec := httptest.NewRecorder()
		f.handler.CollectCryptoFGI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/crypto-fgi/collect", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["stored"])
		assert.Contains(t, body["error"], "unexpected status 502")
	})

	t.Run("successful crypto run reports the stored reading", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": [{"value": "61", "value_classification": "Greed", "timestamp": "1709294400"}]}`))
		}))
		t.Cleanup(srv.Close)

		f := newFixture(t, srv.URL)
		f.mock.ExpectExec("INSERT INTO indicator_data").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		f.handler.CollectCryptoFGI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/crypto-fgi/collect", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["stored"])
		assert.Equal(t, float64(61), body["score"])
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestFGIHistoryEmpty(t *testing.T) {
	f := newFixture(t, "")

	f.mock.ExpectQuery("SELECT ts_utc, score, label").
		WillReturnRows(sqlmock.NewRows([]string{"ts_utc", "score", "label"}))

	rec := httptest.NewRecorder()
	f.handler.FGIHistory(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fgi/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestClientIPHash(t *testing.T) {
	t.Run("first forwarded address wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.Header.Set("X-Real-IP", "10.0.0.2")

		same := httptest.NewRequest(http.MethodGet, "/", nil)
		same.Header.Set("X-Forwarded-For", "203.0.113.7")

		assert.Equal(t, clientIPHash(same), clientIPHash(req))
	})

	t.Run("hash is never the raw address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:51234"

		hash := clientIPHash(req)
		assert.Len(t, hash, 64)
		assert.NotContains(t, hash, "203.0.113.7")
	})

	t.Run("different addresses yield different hashes", func(t *testing.T) {
		a := httptest.NewRequest(http.MethodGet, "/", nil)
		a.RemoteAddr = "203.0.113.7:1"
		b := httptest.NewRequest(http.MethodGet, "/", nil)
		b.RemoteAddr = "203.0.113.8:1"

		assert.NotEqual(t, clientIPHash(a), clientIPHash(b))
	})
}

func TestRangeStart(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-24*time.Hour), rangeStart("24h", now))
	assert.Equal(t, now.AddDate(0, 0, -7), rangeStart("7d", now))
	assert.Equal(t, now.AddDate(0, 0, -90), rangeStart("90d", now))
	assert.Equal(t, now.AddDate(-1, 0, 0), rangeStart("1y", now))
	assert.True(t, rangeStart("all", now).IsZero())

	// Unknown tokens and the empty default both mean 30 days.
	assert.Equal(t, now.AddDate(0, 0, -30), rangeStart("", now))
	assert.Equal(t, now.AddDate(0, 0, -30), rangeStart("bogus", now))
}

func TestParseUserAgent(t *testing.T) {
	const chrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	var parsed structuredUserAgent
	require.NoError(t, json.Unmarshal([]byte(parseUserAgent(chrome)), &parsed))

	assert.Contains(t, parsed.Browser, "Chrome")
	assert.Contains(t, parsed.OS, "Windows")
	assert.Equal(t, "desktop", parsed.Device)
	assert.Equal(t, chrome, parsed.Raw)

	var bot structuredUserAgent
	require.NoError(t, json.Unmarshal([]byte(parseUserAgent("Googlebot/2.1 (+http://www.google.com/bot.html)")), &bot))
	assert.Equal(t, "bot", bot.Device)
}
