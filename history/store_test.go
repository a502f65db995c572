// SPDX-License-Identifier: GPL-3.0-only

package history_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whoistel/db"
	"whoistel/history"
	"whoistel/migrations"
	"whoistel/models"
	"whoistel/phone"
)

func newStore(t *testing.T) (*history.Store, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.sqlite3")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.MigrateHistory(conn))
	t.Cleanup(func() { db.Close(conn) })
	return history.NewStore(conn), conn
}

func TestNewReportValidation(t *testing.T) {
	number := phone.Number("0612345678")

	_, _, err := history.NewReport(number, history.Draft{Comment: "   "})
	assert.ErrorIs(t, err, history.ErrEmptyReport)

	_, _, err = history.NewReport(number, history.Draft{Date: "18/10/2026", IsSpam: true})
	var dateErr *history.InvalidDateError
	assert.ErrorAs(t, err, &dateErr)
	assert.Contains(t, err.Error(), "18/10/2026")
	assert.True(t, history.ValidationError(err))

	report, truncated, err := history.NewReport(number, history.Draft{Date: "2026-10-18"})
	require.NoError(t, err)
	assert.False(t, truncated)
	require.NotNil(t, report.ReportDate)
	assert.Equal(t, "2026-10-18", *report.ReportDate)
	assert.Nil(t, report.Comment)
	assert.Equal(t, "0612345678", report.PhoneNumber)
}

func TestNewReportTruncatesComment(t *testing.T) {
	long := strings.Repeat("é", history.MaxCommentLength+10)
	report, truncated, err := history.NewReport("0612345678", history.Draft{Comment: "  " + long + "  "})
	require.NoError(t, err)
	assert.True(t, truncated)
	require.NotNil(t, report.Comment)
	assert.Equal(t, history.MaxCommentLength, len([]rune(*report.Comment)))
}

func TestStoreAddAndCount(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for _, draft := range []history.Draft{
		{IsSpam: true},
		{IsSpam: true, Comment: "Démarchage"},
		{Comment: "Livreur"},
	} {
		report, _, err := history.NewReport("0612345678", draft)
		require.NoError(t, err)
		require.NoError(t, store.Add(ctx, report))
		assert.NotEmpty(t, report.RID)
		assert.False(t, report.CreatedAt.IsZero())
	}

	other, _, err := history.NewReport("0123456789", history.Draft{IsSpam: true})
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, other))

	count, err := store.SpamCount(ctx, "0612345678")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = store.SpamCount(ctx, "0999999999")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	reports, err := store.ForNumber(ctx, "0612345678", 0)
	require.NoError(t, err)
	assert.Len(t, reports, 3)
}

func TestStoreRecentOrder(t *testing.T) {
	store, conn := newStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		comment := string(rune('a' + i))
		require.NoError(t, conn.Create(&models.Report{
			PhoneNumber: "0612345678",
			Comment:     &comment,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	reports, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "e", *reports[0].Comment)
	assert.Equal(t, "d", *reports[1].Comment)
	assert.Equal(t, "c", *reports[2].Comment)
}

func TestMigrationBackfillsMissingIDs(t *testing.T) {
	store, conn := newStore(t)
	require.NoError(t, conn.Exec(`INSERT INTO reports (phone_number, is_spam, created_at) VALUES ('0612345678', 1, CURRENT_TIMESTAMP)`).Error)

	backfill := migrations.List()[1]
	require.NoError(t, backfill.Migrate(conn))

	reports, err := store.ForNumber(context.Background(), "0612345678", 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].RID)
	assert.True(t, reports[0].IsSpam)
}

func TestWithHistoryOpensAndCloses(t *testing.T) {
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("HISTORY_DB_FILE", filepath.Join(t.TempDir(), "nested", "history.sqlite3"))

	var seen *gorm.DB
	err := db.WithHistory(nil, func(conn *gorm.DB) error {
		seen = conn
		report, _, err := history.NewReport("0612345678", history.Draft{IsSpam: true})
		require.NoError(t, err)
		return history.NewStore(conn).Add(context.Background(), report)
	})
	require.NoError(t, err)

	sqlDB, err := seen.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "handle opened by WithHistory must be closed")
}
