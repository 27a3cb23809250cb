package collectors

import (
	"context"
	"fmt"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cnnReferer = "https://www.cnn.com/"

// component is one sub-index inside CNN's graphdata document. The numeric
// timestamp is usually milliseconds but has been observed as seconds.
type component struct {
	Timestamp float64 `json:"timestamp"`
	Score     float64 `json:"score"`
	Rating    string  `json:"rating"`
}

// headline is the top-level fear_and_greed block; unlike the components its
// timestamp is an ISO-8601 string.
type headline struct {
	Score     float64 `json:"score"`
	Rating    string  `json:"rating"`
	Timestamp string  `json:"timestamp"`
}

type cnnGraphData struct {
	FearAndGreed        headline   `json:"fear_and_greed"`
	MarketMomentumSP500 *component `json:"market_momentum_sp500"`
	MarketMomentumSP125 *component `json:"market_momentum_sp125"`
	StockPriceStrength  *component `json:"stock_price_strength"`
	StockPriceBreadth   *component `json:"stock_price_breadth"`
	PutCallOptions      *component `json:"put_call_options"`
	MarketVolatilityVIX *component `json:"market_volatility_vix"`
	MarketVolatilityV50 *component `json:"market_volatility_vix_50"`
	JunkBondDemand      *component `json:"junk_bond_demand"`
	SafeHavenDemand     *component `json:"safe_haven_demand"`
}

// CNN serves both tracked datasets from the same graphdata document: the
// headline Fear & Greed index and the nine component sub-indices.
type CNNCollector struct {
	fetcher *Fetcher
	store   *timeseries.Store
	url     string
	log     *zap.SugaredLogger
}

func NewCNNCollector(fetcher *Fetcher, store *timeseries.Store, url string, log *zap.SugaredLogger) *CNNCollector {
	return &CNNCollector{fetcher: fetcher, store: store, url: url, log: log}
}

// FGIResult reports one headline Fear & Greed collection run.
type FGIResult struct {
	Stored bool      `json:"stored"`
	Ts     time.Time `json:"ts"`
	Score  int       `json:"score"`
	Label  string    `json:"label"`
}

// CollectFGI stores the headline index under cnn-fgi and mirrors it into the
// deprecated fgi_hourly table for backward read compatibility.
func (c *CNNCollector) CollectFGI(ctx context.Context) (*FGIResult, error) {
	var data cnnGraphData
	if err := c.fetcher.JSON(ctx, c.url, BrowserHeaders(cnnReferer), &data); err != nil {
		return nil, err
	}

	fgi := data.FearAndGreed
	if fgi.Timestamp == "" {
		return nil, fmt.Errorf("no fear and greed data available")
	}

	ts, err := time.Parse(time.RFC3339, fgi.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse fear and greed timestamp %q: %w", fgi.Timestamp, err)
	}

	score := RoundScore(fgi.Score)

	if _, err := c.store.UpsertFGI(ctx, ts, score, fgi.Rating); err != nil {
		return nil, err
	}

	_, err = c.store.UpsertPoint(ctx, models.DataPoint{
		IndicatorID: "cnn-fgi",
		TsUTC:       ts,
		Value:       decimal.NewFromInt(int64(score)),
		Label:       fgi.Rating,
	})
	if err != nil {
		return nil, err
	}

	return &FGIResult{Stored: true, Ts: ts.UTC(), Score: score, Label: fgi.Rating}, nil
}

// SubIndicator is one fan-out row of a CollectIndicators run.
type SubIndicator struct {
	IndicatorID string    `json:"indicator_id"`
	Name        string    `json:"name"`
	Ts          time.Time `json:"ts"`
	Score       int       `json:"score"`
	Label       string    `json:"label"`
}

// IndicatorsResult reports one sub-indicator collection run.
type IndicatorsResult struct {
	Stored     bool           `json:"stored"`
	Count      int            `json:"count"`
	Indicators []SubIndicator `json:"indicators"`
}

// CollectIndicators fans the graphdata document out into the nine component
// indicators. A sub-index with a missing payload or timestamp is skipped;
// partial upstream degradation must not abort the batch.
func (c *CNNCollector) CollectIndicators(ctx context.Context) (*IndicatorsResult, error) {
	var data cnnGraphData
	if err := c.fetcher.JSON(ctx, c.url, BrowserHeaders(cnnReferer), &data); err != nil {
		return nil, err
	}

	subs := []struct {
		id   string
		name string
		data *component
	}{
		{"cnn-sp500-momentum", "S&P 500 Market Momentum", data.MarketMomentumSP500},
		{"cnn-sp125-momentum", "S&P 125 Market Momentum", data.MarketMomentumSP125},
		{"cnn-stock-strength", "Stock Price Strength", data.StockPriceStrength},
		{"cnn-stock-breadth", "Stock Price Breadth", data.StockPriceBreadth},
		{"cnn-put-call", "Put-Call Options", data.PutCallOptions},
		{"cnn-vix", "Market Volatility (VIX)", data.MarketVolatilityVIX},
		{"cnn-vix50", "Market Volatility (VIX50)", data.MarketVolatilityV50},
		{"cnn-junk-bond", "Junk Bond Demand", data.JunkBondDemand},
		{"cnn-safe-haven", "Safe Haven Demand", data.SafeHavenDemand},
	}

	var (
		points  []models.DataPoint
		results []SubIndicator
	)

	for _, sub := range subs {
		if sub.data == nil || sub.data.Timestamp == 0 {
			c.log.Debugw("skipping sub-indicator without timestamp", "indicator_id", sub.id)
			continue
		}

		ts := NormalizeTimestamp(sub.data.Timestamp)
		if ts.IsZero() {
			continue
		}

		score := RoundScore(sub.data.Score)
		points = append(points, models.DataPoint{
			IndicatorID: sub.id,
			TsUTC:       ts,
			Value:       decimal.NewFromInt(int64(score)),
			Label:       sub.data.Rating,
		})
		results = append(results, SubIndicator{
			IndicatorID: sub.id,
			Name:        sub.name,
			Ts:          ts,
			Score:       score,
			Label:       sub.data.Rating,
		})
	}

	if _, err := c.store.BatchUpsert(ctx, points); err != nil {
		return nil, err
	}

	return &IndicatorsResult{Stored: true, Count: len(results), Indicators: results}, nil
}
