package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Indicator categories. Free-form strings in the database, but collectors and
// the seed catalog only use these.
const (
	CategorySentiment  = "sentiment"
	CategoryCrypto     = "crypto"
	CategoryValuation  = "valuation"
	CategoryVolatility = "volatility"
	CategoryMomentum   = "momentum"
	CategoryStrength   = "strength"
	CategoryBreadth    = "breadth"
	CategoryOptions    = "options"
	CategoryBonds      = "bonds"
	CategorySafeHaven  = "safe-haven"
	CategoryOther      = "other"
)

type Indicator struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Category    string    `json:"category" db:"category"`
	Source      string    `json:"source" db:"source"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DataPoint is one observation for one indicator. Value is stored as an exact
// decimal so aggregations do not accumulate float drift. TsUTC is the
// observation time; CreatedAt is the ingestion time.
type DataPoint struct {
	ID          int64           `json:"-" db:"id"`
	IndicatorID string          `json:"indicator_id" db:"indicator_id"`
	TsUTC       time.Time       `json:"ts_utc" db:"ts_utc"`
	Value       decimal.Decimal `json:"value" db:"value"`
	Label       string          `json:"label,omitempty" db:"label"`
	Metadata    json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ViewEvent is one recorded impression of an indicator detail view. IPHash is
// a one-way hash, never the raw address. UserID and SessionID are set only
// when the viewer was authenticated at view time.
type ViewEvent struct {
	ID          int64     `json:"id" db:"id"`
	IndicatorID string    `json:"indicator_id" db:"indicator_id"`
	ViewedAt    time.Time `json:"viewed_at" db:"viewed_at"`
	UserAgent   string    `json:"user_agent,omitempty" db:"user_agent"`
	IPHash      string    `json:"-" db:"ip_hash"`
	UserID      *string   `json:"user_id,omitempty" db:"user_id"`
	SessionID   *string   `json:"session_id,omitempty" db:"session_id"`
}

// ViewWithUser is a ledger row joined with the viewer's display name. Email
// is intentionally never selected.
type ViewWithUser struct {
	ID            int64     `json:"id"`
	IndicatorID   string    `json:"indicator_id"`
	ViewedAt      time.Time `json:"viewed_at"`
	UserAgent     string    `json:"user_agent,omitempty"`
	UserName      *string   `json:"user,omitempty"`
	Authenticated bool      `json:"is_authenticated"`
}

// IndicatorWithLatest is one row of the dashboard listing: the indicator
// joined with its most recent data point, its total point count, and its view
// count in the trailing 30-day window.
type IndicatorWithLatest struct {
	Indicator
	LatestValue *decimal.Decimal `json:"latest_value,omitempty"`
	LatestLabel *string          `json:"latest_label,omitempty"`
	LatestTs    *time.Time       `json:"latest_ts,omitempty"`
	ViewCount   int64            `json:"view_count"`
	DataCount   int64            `json:"data_count"`
}

type TopIndicator struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ViewCount  int64      `json:"view_count"`
	LastViewed *time.Time `json:"last_viewed,omitempty"`
}

type DailyViews struct {
	Date  time.Time `json:"date"`
	Views int64     `json:"views"`
}

type CategoryStats struct {
	Category       string `json:"category"`
	IndicatorCount int64  `json:"indicator_count"`
	TotalViews     int64  `json:"total_views"`
}

// Freshness surfaces indicators that have stopped receiving data. A nil
// LastUpdate means the indicator has never been collected.
type Freshness struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	DataPoints int64      `json:"data_points"`
}

// FGIHourly is a row of the deprecated fgi_hourly table, kept only for
// backward read compatibility with the original CNN Fear & Greed tracker.
type FGIHourly struct {
	TsUTC time.Time `json:"ts_utc" db:"ts_utc"`
	Score int16     `json:"score" db:"score"`
	Label string    `json:"label" db:"label"`
}
