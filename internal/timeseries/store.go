// Package timeseries is the append-only store of indicator observations.
// The unique constraint on (indicator_id, ts_utc) makes repeated collection
// runs idempotent: writes are insert-or-ignore, never insert-or-update, so a
// flaky re-fetch can never overwrite a good historical value.
package timeseries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
	"go.uber.org/zap"
)

var ErrInvalidTimestamp = errors.New("timeseries: timestamp must be a valid instant")

type Store struct {
	db  *database.DB
	log *zap.SugaredLogger
}

func NewStore(db *database.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// UpsertPoint stores one observation. A conflict on (indicator_id, ts_utc)
// is a no-op reported as inserted=false: it signals "already collected", not
// an error.
func (s *Store) UpsertPoint(ctx context.Context, p models.DataPoint) (bool, error) {
	if p.TsUTC.IsZero() {
		return false, ErrInvalidTimestamp
	}

	query := `
		INSERT INTO indicator_data (indicator_id, ts_utc, value, label, metadata)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (indicator_id, ts_utc) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, p.IndicatorID, p.TsUTC.UTC(), p.Value, p.Label, nullableJSON(p.Metadata))
	if err != nil {
		return false, fmt.Errorf("upsert data point %s@%s: %w", p.IndicatorID, p.TsUTC.UTC().Format(time.RFC3339), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BatchUpsert stores a batch in one statement. If the bulk insert fails it
// falls back to per-row upserts so one malformed row does not sink the rest
// of the batch. Returns the number of newly inserted rows.
func (s *Store) BatchUpsert(ctx context.Context, points []models.DataPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	inserted, err := s.bulkInsert(ctx, points)
	if err == nil {
		return inserted, nil
	}

	s.log.Warnw("batch insert failed, retrying per row", "error", err, "points", len(points))

	inserted = 0
	for _, p := range points {
		ok, rowErr := s.UpsertPoint(ctx, p)
		if rowErr != nil {
			s.log.Warnw("skipping bad data point",
				"indicator_id", p.IndicatorID,
				"ts", p.TsUTC,
				"error", rowErr,
			)
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Store) bulkInsert(ctx context.Context, points []models.DataPoint) (int, error) {
	query := `
		INSERT INTO indicator_data (indicator_id, ts_utc, value, label, metadata)
		VALUES `
	args := make([]interface{}, 0, len(points)*5)
	for i, p := range points {
		if p.TsUTC.IsZero() {
			return 0, ErrInvalidTimestamp
		}
		if i > 0 {
			query += ", "
		}
		base := i * 5
		query += fmt.Sprintf("($%d, $%d, $%d, NULLIF($%d, ''), $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, p.IndicatorID, p.TsUTC.UTC(), p.Value, p.Label, nullableJSON(p.Metadata))
	}
	query += ` ON CONFLICT (indicator_id, ts_utc) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// LatestPoint returns the observation with the maximum ts_utc, or nil when
// the indicator has never been collected. Timestamp ties break by insertion
// order so the result is deterministic.
func (s *Store) LatestPoint(ctx context.Context, indicatorID string) (*models.DataPoint, error) {
	query := `
		SELECT id, indicator_id, ts_utc, value, label, metadata, created_at
		FROM indicator_data
		WHERE indicator_id = $1
		ORDER BY ts_utc DESC, id DESC
		LIMIT 1
	`

	p, err := scanPoint(s.db.QueryRowContext(ctx, query, indicatorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest point for %s: %w", indicatorID, err)
	}
	return p, nil
}

// RangeQuery bounds a QueryRange call. Zero From/To mean unbounded.
type RangeQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// QueryRange returns observations ordered by ts_utc descending (most recent
// first). The chart client reverses the order for chronological display, so
// the descending sort is part of the contract.
func (s *Store) QueryRange(ctx context.Context, indicatorID string, q RangeQuery) ([]models.DataPoint, error) {
	query := `
		SELECT id, indicator_id, ts_utc, value, label, metadata, created_at
		FROM indicator_data
		WHERE indicator_id = $1
		  AND ($2::timestamptz IS NULL OR ts_utc >= $2)
		  AND ($3::timestamptz IS NULL OR ts_utc <= $3)
		ORDER BY ts_utc DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := s.db.QueryContext(ctx, query,
		indicatorID,
		nullableTime(q.From),
		nullableTime(q.To),
		database.SafeLimit(q.Limit, 100, 1000),
		database.SafeOffset(q.Offset),
	)
	if err != nil {
		return nil, fmt.Errorf("query range for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var points []models.DataPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data point: %w", err)
		}
		points = append(points, *p)
	}
	return points, rows.Err()
}

// UpsertFGI writes to the deprecated fgi_hourly table, kept for backward
// read compatibility. The original tracker used update-on-conflict here;
// that would let a corrupt re-fetch overwrite history, so this path is
// insert-or-ignore like everything else.
func (s *Store) UpsertFGI(ctx context.Context, ts time.Time, score int, label string) (bool, error) {
	if ts.IsZero() {
		return false, ErrInvalidTimestamp
	}

	query := `
		INSERT INTO fgi_hourly (ts_utc, score, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (ts_utc) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query, ts.UTC(), score, label)
	if err != nil {
		return false, fmt.Errorf("upsert fgi_hourly: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FGIHistory reads the deprecated fgi_hourly table, newest first.
func (s *Store) FGIHistory(ctx context.Context, limit int) ([]models.FGIHourly, error) {
	query := `
		SELECT ts_utc, score, label
		FROM fgi_hourly
		ORDER BY ts_utc DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, database.SafeLimit(limit, 100, 1000))
	if err != nil {
		return nil, fmt.Errorf("fgi history: %w", err)
	}
	defer rows.Close()

	var history []models.FGIHourly
	for rows.Next() {
		var h models.FGIHourly
		if err := rows.Scan(&h.TsUTC, &h.Score, &h.Label); err != nil {
			return nil, fmt.Errorf("scan fgi row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPoint(row rowScanner) (*models.DataPoint, error) {
	var (
		p        models.DataPoint
		label    sql.NullString
		metadata []byte
	)

	if err := row.Scan(&p.ID, &p.IndicatorID, &p.TsUTC, &p.Value, &label, &metadata, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.Label = label.String
	if len(metadata) > 0 {
		p.Metadata = metadata
	}
	return &p, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
