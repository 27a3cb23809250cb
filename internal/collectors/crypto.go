package collectors

import (
	"context"
	"fmt"
	"strconv"

	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"github.com/DanielZ1337/finance-index-trackers/internal/timeseries"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// cryptoFGIResponse is alternative.me's fng envelope. Values arrive as
// strings; timestamps are Unix seconds.
type cryptoFGIResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

type CryptoFGICollector struct {
	fetcher *Fetcher
	store   *timeseries.Store
	url     string
	log     *zap.SugaredLogger
}

func NewCryptoFGICollector(fetcher *Fetcher, store *timeseries.Store, url string, log *zap.SugaredLogger) *CryptoFGICollector {
	return &CryptoFGICollector{fetcher: fetcher, store: store, url: url, log: log}
}

// Collect stores the latest crypto Fear & Greed reading under crypto-fgi.
func (c *CryptoFGICollector) Collect(ctx context.Context) (*FGIResult, error) {
	var resp cryptoFGIResponse
	if err := c.fetcher.JSON(ctx, c.url, nil, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no crypto fear and greed data available")
	}
	latest := resp.Data[0]

	rawTs, err := strconv.ParseFloat(latest.Timestamp, 64)
	if err != nil {
		return nil, fmt.Errorf("parse crypto fgi timestamp %q: %w", latest.Timestamp, err)
	}

	ts := NormalizeTimestamp(rawTs)
	if ts.IsZero() {
		return nil, fmt.Errorf("invalid crypto fgi timestamp %q", latest.Timestamp)
	}

	score, err := strconv.Atoi(latest.Value)
	if err != nil {
		return nil, fmt.Errorf("parse crypto fgi value %q: %w", latest.Value, err)
	}

	_, err = c.store.UpsertPoint(ctx, models.DataPoint{
		IndicatorID: "crypto-fgi",
		TsUTC:       ts,
		Value:       decimal.NewFromInt(int64(score)),
		Label:       latest.ValueClassification,
	})
	if err != nil {
		return nil, err
	}

	return &FGIResult{Stored: true, Ts: ts, Score: score, Label: latest.ValueClassification}, nil
}
