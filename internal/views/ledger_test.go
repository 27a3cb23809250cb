package views

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielZ1337/finance-index-trackers/internal/database"
	"github.com/DanielZ1337/finance-index-trackers/internal/models"
)

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLedger(database.New(db)), mock
}

func TestRecord(t *testing.T) {
	viewedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("anonymous view stores null identity", func(t *testing.T) {
		ledger, mock := newTestLedger(t)

		mock.ExpectQuery("INSERT INTO indicator_views").
			WithArgs("cnn-fgi", "Mozilla/5.0", "abc123", nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "viewed_at"}).AddRow(int64(42), viewedAt))

		ev, err := ledger.Record(context.Background(), models.ViewEvent{
			IndicatorID: "cnn-fgi",
			UserAgent:   "Mozilla/5.0",
			IPHash:      "abc123",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(42), ev.ID)
		assert.Equal(t, viewedAt, ev.ViewedAt)
		assert.Nil(t, ev.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("authenticated view carries user and session", func(t *testing.T) {
		ledger, mock := newTestLedger(t)

		userID, sessionID := "user-1", "sess-1"
		mock.ExpectQuery("INSERT INTO indicator_views").
			WithArgs("vix", "Mozilla/5.0", "abc123", &userID, &sessionID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "viewed_at"}).AddRow(int64(43), viewedAt))

		ev, err := ledger.Record(context.Background(), models.ViewEvent{
			IndicatorID: "vix",
			UserAgent:   "Mozilla/5.0",
			IPHash:      "abc123",
			UserID:      &userID,
			SessionID:   &sessionID,
		})
		require.NoError(t, err)
		require.NotNil(t, ev.UserID)
		assert.Equal(t, "user-1", *ev.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure surfaces the error", func(t *testing.T) {
		ledger, mock := newTestLedger(t)

		mock.ExpectQuery("INSERT INTO indicator_views").
			WillReturnError(assert.AnError)

		_, err := ledger.Record(context.Background(), models.ViewEvent{IndicatorID: "vix"})
		assert.ErrorContains(t, err, "record view for vix")
	})
}

func TestList(t *testing.T) {
	ledger, mock := newTestLedger(t)

	viewedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "indicator_id", "viewed_at", "user_agent", "name", "authenticated"}).
		AddRow(int64(2), "cnn-fgi", viewedAt, "Mozilla/5.0", "Ada", true).
		AddRow(int64(1), "cnn-fgi", viewedAt.Add(-time.Hour), "", nil, false)
	mock.ExpectQuery("SELECT v.id, v.indicator_id, v.viewed_at").
		WithArgs("cnn-fgi", 50, 0).
		WillReturnRows(rows)

	views, err := ledger.List(context.Background(), "cnn-fgi", 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.NotNil(t, views[0].UserName)
	assert.Equal(t, "Ada", *views[0].UserName)
	assert.True(t, views[0].Authenticated)

	assert.Nil(t, views[1].UserName)
	assert.False(t, views[1].Authenticated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
