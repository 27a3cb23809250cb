// Package catalog is the registry of indicator identities. Indicators are
// created once via seeding, soft-deleted by toggling is_active, and never
// physically removed while data points reference them.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
)

// Seed is the static set of tracked indicators. IDs are stable slugs and
// must never change once data points reference them.
var Seed = []models.Indicator{
	{ID: "cnn-fgi", Name: "CNN Fear & Greed Index", Description: "Market sentiment indicator from CNN", Category: models.CategorySentiment, Source: "CNN"},
	{ID: "crypto-fgi", Name: "Crypto Fear & Greed Index", Description: "Cryptocurrency market sentiment", Category: models.CategoryCrypto, Source: "Alternative.me"},
	{ID: "warren-buffett", Name: "Warren Buffett Indicator", Description: "Market cap to GDP ratio", Category: models.CategoryValuation, Source: "FRED"},
	{ID: "vix", Name: "VIX Volatility Index", Description: "Market volatility and fear gauge", Category: models.CategoryVolatility, Source: "CBOE"},
	{ID: "cnn-sp500-momentum", Name: "S&P 500 Market Momentum", Description: "S&P 500 momentum indicator from CNN", Category: models.CategoryMomentum, Source: "CNN"},
	{ID: "cnn-sp125-momentum", Name: "S&P 125 Market Momentum", Description: "S&P 125 momentum indicator from CNN", Category: models.CategoryMomentum, Source: "CNN"},
	{ID: "cnn-stock-strength", Name: "Stock Price Strength", Description: "Stock price strength indicator from CNN", Category: models.CategoryStrength, Source: "CNN"},
	{ID: "cnn-stock-breadth", Name: "Stock Price Breadth", Description: "Stock price breadth indicator from CNN", Category: models.CategoryBreadth, Source: "CNN"},
	{ID: "cnn-put-call", Name: "Put-Call Options", Description: "Put-call options ratio from CNN", Category: models.CategoryOptions, Source: "CNN"},
	{ID: "cnn-vix", Name: "Market Volatility (VIX)", Description: "VIX-based volatility component from CNN", Category: models.CategoryVolatility, Source: "CNN"},
	{ID: "cnn-vix50", Name: "Market Volatility (VIX50)", Description: "VIX 50-day moving average component from CNN", Category: models.CategoryVolatility, Source: "CNN"},
	{ID: "cnn-junk-bond", Name: "Junk Bond Demand", Description: "Junk bond demand indicator from CNN", Category: models.CategoryBonds, Source: "CNN"},
	{ID: "cnn-safe-haven", Name: "Safe Haven Demand", Description: "Safe haven demand indicator from CNN", Category: models.CategorySafeHaven, Source: "CNN"},
}

type Catalog struct {
	db *database.DB
}

func New(db *database.DB) *Catalog {
	return &Catalog{db: db}
}

const ensureQuery = `
	INSERT INTO indicators (id, name, description, category, source, is_active)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, TRUE)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		source = EXCLUDED.source
`

// Ensure registers an indicator, updating its display fields if it already
// exists. The id itself is immutable.
func (c *Catalog) Ensure(ctx context.Context, ind models.Indicator) error {
	if _, err := c.db.ExecContext(ctx, ensureQuery, ind.ID, ind.Name, ind.Description, ind.Category, ind.Source); err != nil {
		return fmt.Errorf("ensure indicator %s: %w", ind.ID, err)
	}
	return nil
}

// EnsureSeed registers the full static catalog in one transaction, so a
// failure mid-seed never leaves a partially registered catalog behind.
func (c *Catalog) EnsureSeed(ctx context.Context) error {
	return c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, ind := range Seed {
			if _, err := tx.ExecContext(ctx, ensureQuery, ind.ID, ind.Name, ind.Description, ind.Category, ind.Source); err != nil {
				return fmt.Errorf("ensure indicator %s: %w", ind.ID, err)
			}
		}
		return nil
	})
}

// Get returns an indicator by id, or nil if it does not exist.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Indicator, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), category, source, is_active, created_at
		FROM indicators
		WHERE id = $1
	`

	var ind models.Indicator
	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&ind.ID,
		&ind.Name,
		&ind.Description,
		&ind.Category,
		&ind.Source,
		&ind.IsActive,
		&ind.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get indicator %s: %w", id, err)
	}

	return &ind, nil
}

// Deactivate soft-deletes an indicator. Historical data points and view
// events stay intact.
func (c *Catalog) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `UPDATE indicators SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deactivate indicator %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
