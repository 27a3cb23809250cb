// Package views is the append-only ledger of indicator view events, used for
// popularity analytics only, never for access control. The ledger records
// every call verbatim; de-duplication is the caller's concern.
package views

import (
	"context"
	"fmt"

	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
)

type Ledger struct {
	db *database.DB
}

func NewLedger(db *database.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one view event. UserID and SessionID are nil for anonymous
// viewers. Callers treat failures as best-effort: a ledger error must never
// fail the request that triggered the view.
func (l *Ledger) Record(ctx context.Context, ev models.ViewEvent) (*models.ViewEvent, error) {
	query := `
		INSERT INTO indicator_views (indicator_id, user_agent, ip_hash, user_id, session_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id, viewed_at
	`

	err := l.db.QueryRowContext(ctx, query,
		ev.IndicatorID,
		ev.UserAgent,
		ev.IPHash,
		ev.UserID,
		ev.SessionID,
	).Scan(&ev.ID, &ev.ViewedAt)
	if err != nil {
		return nil, fmt.Errorf("record view for %s: %w", ev.IndicatorID, err)
	}

	return &ev, nil
}

// List returns view events for an indicator, newest first, joined with the
// viewer's display name when the view was authenticated. Email is never
// selected.
func (l *Ledger) List(ctx context.Context, indicatorID string, limit, offset int) ([]models.ViewWithUser, error) {
	query := `
		SELECT v.id, v.indicator_id, v.viewed_at,
			COALESCE(v.user_agent, ''),
			u.name,
			v.user_id IS NOT NULL
		FROM indicator_views v
		LEFT JOIN users u ON u.id = v.user_id
		WHERE v.indicator_id = $1
		ORDER BY v.viewed_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := l.db.QueryContext(ctx, query,
		indicatorID,
		database.SafeLimit(limit, 50, 500),
		database.SafeOffset(offset),
	)
	if err != nil {
		return nil, fmt.Errorf("list views for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var result []models.ViewWithUser
	for rows.Next() {
		var v models.ViewWithUser
		if err := rows.Scan(&v.ID, &v.IndicatorID, &v.ViewedAt, &v.UserAgent, &v.UserName, &v.Authenticated); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
