package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VIX classification thresholds on the index value.
const (
	vixElevated = 20
	vixHigh     = 30
)

// globalQuote is Alpha Vantage's GLOBAL_QUOTE envelope. Field keys carry the
// numeric prefixes of their CSV column order.
type globalQuote struct {
	Quote struct {
		Price            string `json:"05. price"`
		LatestTradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
}

type VIXCollector struct {
	fetcher *Fetcher
	store   *timeseries.Store
	baseURL string
	apiKey  string
	log     *zap.SugaredLogger
}

func NewVIXCollector(fetcher *Fetcher, store *timeseries.Store, baseURL, apiKey string, log *zap.SugaredLogger) *VIXCollector {
	return &VIXCollector{fetcher: fetcher, store: store, baseURL: baseURL, apiKey: apiKey, log: log}
}

// VIXResult reports one VIX collection run. Value keeps full decimal
// precision; the VIX is not a rounded 0-100 gauge.
type VIXResult struct {
	Stored bool            `json:"stored"`
	Ts     time.Time       `json:"ts"`
	Value  decimal.Decimal `json:"value"`
	Label  string          `json:"label"`
}

func (c *VIXCollector) Collect(ctx context.Context) (*VIXResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("alpha vantage API key not configured")
	}

	endpoint := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=VIX&apikey=%s",
		c.baseURL, url.QueryEscape(c.apiKey))

	var resp globalQuote
	if err := c.fetcher.JSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Quote.Price == "" {
		return nil, fmt.Errorf("no VIX quote available")
	}

	value, err := decimal.NewFromString(resp.Quote.Price)
	if err != nil {
		return nil, fmt.Errorf("parse VIX price %q: %w", resp.Quote.Price, err)
	}

	ts, err := time.ParseInLocation("2006-01-02", resp.Quote.LatestTradingDay, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse VIX trading day %q: %w", resp.Quote.LatestTradingDay, err)
	}

	label := classifyVIX(value)

	metadata, _ := json.Marshal(map[string]string{"source": "alphavantage"})

	_, err = c.store.UpsertPoint(ctx, models.DataPoint{
		IndicatorID: "vix",
		TsUTC:       ts,
		Value:       value,
		Label:       label,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	return &VIXResult{Stored: true, Ts: ts, Value: value, Label: label}, nil
}

func classifyVIX(value decimal.Decimal) string {
	switch {
	case value.GreaterThan(decimal.NewFromInt(vixHigh)):
		return "High Volatility"
	case value.GreaterThan(decimal.NewFromInt(vixElevated)):
		return "Elevated Volatility"
	default:
		return "Low Volatility"
	}
}
