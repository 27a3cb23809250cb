// Package analytics is the read side: set-based aggregation over the
// time-series store and the view ledger. Counters are computed per query
// rather than maintained on write, which keeps the write path a plain
// insert-or-ignore at the cost of read-side work — fine for dashboard
// traffic.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/cache"
	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trailing windows used by the aggregates.
const (
	ViewCountWindowDays = 30
	TrendWindowDays     = 7
	TopIndicatorsLimit  = 10
)

type Service struct {
	db         *database.DB
	cache      cache.Cache
	listingTTL time.Duration
	log        *zap.SugaredLogger
}

func NewService(db *database.DB, c cache.Cache, listingTTL time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cache: c, listingTTL: listingTTL, log: log}
}

type ListParams struct {
	Category string
	Search   string
	SortBy   string
	SortDir  string
	Limit    int
	Offset   int
}

var listSortColumns = []string{"view_count", "name", "latest_value", "latest_ts"}

// ListIndicators returns every active indicator joined with its latest data
// point, its total data-point count, and its view count in the trailing
// 30-day window. Results go through that short-TTL cache keyed by the full
// parameter set; entries expire by time only.
func (s *Service) ListIndicators(ctx context.Context, p ListParams) ([]models.IndicatorWithLatest, error) {
	key := fmt.Sprintf("indicators:list:%s:%s:%s:%s:%d:%d",
		p.Category, p.Search, p.SortBy, p.SortDir, p.Limit, p.Offset)

	if data, ok := s.cache.Get(ctx, key); ok {
		var cached []models.IndicatorWithLatest
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.log.Warnw("discarding undecodable cache entry", "key", key)
	}

	list, err := s.listIndicators(ctx, p)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(list); err == nil {
		s.cache.Set(ctx, key, data, s.listingTTL)
	}
	return list, nil
}

func (s *Service) listIndicators(ctx context.Context, p ListParams) ([]models.IndicatorWithLatest, error) {
	sortBy := database.SafeOrderBy(p.SortBy, listSortColumns)
	dir := database.SafeSortDirection(p.SortDir)

	// Nullable sort keys always push nulls last, regardless of direction.
	var orderExpr string
	switch sortBy {
	case "name":
		orderExpr = "i.name " + dir
	case "latest_value":
		orderExpr = "latest.value " + dir + " NULLS LAST"
	case "latest_ts":
		orderExpr = "latest.ts_utc " + dir + " NULLS LAST"
	default:
		orderExpr = "COALESCE(vc.view_count, 0) " + dir
	}

	query := fmt.Sprintf(`
		SELECT i.id, i.name, COALESCE(i.description, ''), i.category, i.source, i.is_active, i.created_at,
			latest.value, latest.label, latest.ts_utc,
			COALESCE(vc.view_count, 0),
			COALESCE(dc.data_count, 0)
		FROM indicators i
		LEFT JOIN LATERAL (
			SELECT value, label, ts_utc
			FROM indicator_data d
			WHERE d.indicator_id = i.id
			ORDER BY d.ts_utc DESC, d.id DESC
			LIMIT 1
		) latest ON TRUE
		LEFT JOIN (
			SELECT indicator_id, COUNT(*) AS view_count
			FROM indicator_views
			WHERE viewed_at >= NOW() - make_interval(days => %d)
			GROUP BY indicator_id
		) vc ON vc.indicator_id = i.id
		LEFT JOIN (
			SELECT indicator_id, COUNT(*) AS data_count
			FROM indicator_data
			GROUP BY indicator_id
		) dc ON dc.indicator_id = i.id
		WHERE i.is_active
		  AND ($1 = '' OR i.category = $1)
		  AND ($2 = '' OR i.name ILIKE '%%' || $2 || '%%' OR COALESCE(i.description, '') ILIKE '%%' || $2 || '%%')
		ORDER BY %s, i.name ASC
		LIMIT $3 OFFSET $4
	`, ViewCountWindowDays, orderExpr)

	rows, err := s.db.QueryContext(ctx, query,
		p.Category,
		p.Search,
		database.SafeLimit(p.Limit, 100, 500),
		database.SafeOffset(p.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	defer rows.Close()

	var list []models.IndicatorWithLatest
	for rows.Next() {
		var (
			row         models.IndicatorWithLatest
			latestValue decimal.NullDecimal
			latestLabel sql.NullString
			latestTs    sql.NullTime
		)

		err := rows.Scan(
			&row.ID, &row.Name, &row.Description, &row.Category, &row.Source, &row.IsActive, &row.CreatedAt,
			&latestValue, &latestLabel, &latestTs,
			&row.ViewCount,
			&row.DataCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan indicator row: %w", err)
		}

		if latestValue.Valid {
			v := latestValue.Decimal
			row.LatestValue = &v
		}
		if latestLabel.Valid {
			row.LatestLabel = &latestLabel.String
		}
		if latestTs.Valid {
			t := latestTs.Time
			row.LatestTs = &t
		}

		list = append(list, row)
	}
	return list, rows.Err()
}

// TopIndicators groups view events by indicator over the trailing window and
// returns the most viewed first. Indicators with zero views in the window
// still appear, with a zero count.
func (s *Service) TopIndicators(ctx context.Context, windowDays, limit int) ([]models.TopIndicator, error) {
	if windowDays <= 0 {
		windowDays = ViewCountWindowDays
	}

	query := `
		SELECT i.id, i.name, COUNT(v.id), MAX(v.viewed_at)
		FROM indicators i
		LEFT JOIN indicator_views v
			ON v.indicator_id = i.id
			AND v.viewed_at >= NOW() - make_interval(days => $1)
		GROUP BY i.id, i.name
		ORDER BY COUNT(v.id) DESC, i.name ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, windowDays, database.SafeLimit(limit, TopIndicatorsLimit, 100))
	if err != nil {
		return nil, fmt.Errorf("top indicators: %w", err)
	}
	defer rows.Close()

	var top []models.TopIndicator
	for rows.Next() {
		var (
			t          models.TopIndicator
			lastViewed sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.ViewCount, &lastViewed); err != nil {
			return nil, fmt.Errorf("scan top indicator: %w", err)
		}
		if lastViewed.Valid {
			ts := lastViewed.Time
			t.LastViewed = &ts
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

// DailyTrend buckets view events by UTC calendar day over the trailing
// window, newest day first.
func (s *Service) DailyTrend(ctx context.Context, days int) ([]models.DailyViews, error) {
	if days <= 0 {
		days = TrendWindowDays
	}

	query := `
		SELECT date_trunc('day', viewed_at AT TIME ZONE 'UTC'), COUNT(*)
		FROM indicator_views
		WHERE viewed_at >= NOW() - make_interval(days => $1)
		GROUP BY 1
		ORDER BY 1 DESC
	`

	rows, err := s.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("daily trend: %w", err)
	}
	defer rows.Close()

	var trend []models.DailyViews
	for rows.Next() {
		var d models.DailyViews
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, fmt.Errorf("scan daily trend: %w", err)
		}
		trend = append(trend, d)
	}
	return trend, rows.Err()
}

// CategoryBreakdown groups active indicators by category with distinct
// indicator counts and all-time view totals.
func (s *Service) CategoryBreakdown(ctx context.Context) ([]models.CategoryStats, error) {
	query := `
		SELECT i.category, COUNT(DISTINCT i.id), COUNT(v.id)
		FROM indicators i
		LEFT JOIN indicator_views v ON v.indicator_id = i.id
		WHERE i.is_active
		GROUP BY i.category
		ORDER BY COUNT(v.id) DESC, i.category ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var breakdown []models.CategoryStats
	for rows.Next() {
		var c models.CategoryStats
		if err := rows.Scan(&c.Category, &c.IndicatorCount, &c.TotalViews); err != nil {
			return nil, fmt.Errorf("scan category stats: %w", err)
		}
		breakdown = append(breakdown, c)
	}
	return breakdown, rows.Err()
}

// DataFreshness reports max(ts_utc) and point count per active indicator.
// Indicators that never received data surface with a null last update, which
// the dashboard renders as "never collected".
func (s *Service) DataFreshness(ctx context.Context) ([]models.Freshness, error) {
	query := `
		SELECT i.id, i.name, MAX(d.ts_utc), COUNT(d.id)
		FROM indicators i
		LEFT JOIN indicator_data d ON d.indicator_id = i.id
		WHERE i.is_active
		GROUP BY i.id, i.name
		ORDER BY MAX(d.ts_utc) DESC NULLS LAST, i.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("data freshness: %w", err)
	}
	defer rows.Close()

	var freshness []models.Freshness
	for rows.Next() {
		var (
			f          models.Freshness
			lastUpdate sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.Name, &lastUpdate, &f.DataPoints); err != nil {
			return nil, fmt.Errorf("scan freshness: %w", err)
		}
		if lastUpdate.Valid {
			ts := lastUpdate.Time
			f.LastUpdate = &ts
		}
		freshness = append(freshness, f)
	}
	return freshness, rows.Err()
}

// Overview bundles the dashboard analytics widgets into one response so the
// client never stitches aggregates from separate, possibly inconsistent
// calls.
type Overview struct {
	TopIndicators     []models.TopIndicator  `json:"topIndicators"`
	DailyTrends       []models.DailyViews    `json:"dailyTrends"`
	CategoryBreakdown []models.CategoryStats `json:"categoryBreakdown"`
	DataFreshness     []models.Freshness     `json:"dataFreshness"`
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	top, err := s.TopIndicators(ctx, ViewCountWindowDays, TopIndicatorsLimit)
	if err != nil {
		return nil, err
	}

	trend, err := s.DailyTrend(ctx, TrendWindowDays)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.CategoryBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	freshness, err := s.DataFreshness(ctx)
	if err != nil {
		return nil, err
	}

	return &Overview{
		TopIndicators:     top,
		DailyTrends:       trend,
		CategoryBreakdown: breakdown,
		DataFreshness:     freshness,
	}, nil
}
