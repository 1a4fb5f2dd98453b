package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

func testDeps(t *testing.T) (*civildate.Normalizer, *logger.Logger, *metrics.Metrics) {
	t.Helper()
	dates, err := civildate.New("America/Chicago")
	require.NoError(t, err)
	return dates, logger.Discard(), metrics.NewWithRegisterer(prometheus.NewRegistry())
}

func setupPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dates, log, m := testDeps(t)
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock"), dates, log, m), mock
}

func januaryWindow(t *testing.T) domain.Window {
	t.Helper()
	dates, _, _ := testDeps(t)
	w, err := dates.Window(domain.DateRange{Start: "2025-01-01", End: "2025-01-03"})
	require.NoError(t, err)
	return w
}

func TestPostgresStore_GoalEvents(t *testing.T) {
	store, mock := setupPostgresStore(t)
	w := januaryWindow(t)

	mock.ExpectQuery("FROM orders").
		WithArgs(w.From, w.To).
		WillReturnRows(sqlmock.NewRows([]string{"record_type", "occurred_at", "source"}).
			AddRow("order", "2025-01-01 07:00:00+00", "ig").
			AddRow("user", "2025-01-02 05:30:00.123+00", "").
			AddRow("sms", "garbage", "fb"))

	events, err := store.GoalEvents(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, domain.GoalEvent{RecordType: domain.RecordOrder, CivilDate: "2025-01-01", Source: "ig"}, events[0])
	// 05:30 UTC is still the previous evening in Chicago.
	assert.Equal(t, "2025-01-01", events[1].CivilDate)
	assert.Equal(t, civildate.SentinelDate, events[2].CivilDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AdSpendCoercesMalformed(t *testing.T) {
	store, mock := setupPostgresStore(t)
	w := januaryWindow(t)

	mock.ExpectQuery("FROM ad_spend").
		WithArgs("2025-01-01", "2025-01-03").
		WillReturnRows(sqlmock.NewRows([]string{"date", "platform", "campaign_id", "campaign_name", "spend"}).
			AddRow("2025-01-01", "Meta", "c1", "Spring", "30.50").
			AddRow("2025-01-02", "google", "c2", "Search", "N/A").
			AddRow("2025-01-03", "google", "c2", "Search", ""))

	records, err := store.AdSpend(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "meta", records[0].Platform)
	assert.Equal(t, "30.5", records[0].Spend.String())
	assert.True(t, records[1].Spend.IsZero())
	assert.True(t, records[2].Spend.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FollowerSnapshots(t *testing.T) {
	store, mock := setupPostgresStore(t)
	w := januaryWindow(t)

	mock.ExpectQuery("FROM follower_snapshots").
		WithArgs("2025-01-01", "2025-01-03").
		WillReturnRows(sqlmock.NewRows([]string{"platform", "date", "count"}).
			AddRow("Meta", "2025-01-01", "100").
			AddRow("meta", "bad-date", "120").
			AddRow("meta", "2025-01-02", "").
			AddRow("google", "2025-01-02", "150.0").
			AddRow("meta", "2025-01-03", "-5"))

	snapshots, err := store.FollowerSnapshots(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2025-01-01", Count: 100},
		{Platform: "google", CivilDate: "2025-01-02", Count: 150},
		{Platform: "meta", CivilDate: "2025-01-03", Count: 0},
	}, snapshots)
}

func TestPostgresStore_CampaignGoalMappings(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery("FROM campaign_goal_mappings").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "campaign_name", "platform", "goals"}).
			AddRow("c1", "Spring", "META", "orders, followers").
			AddRow("c2", "Search", "google", "{users,sms,users}").
			AddRow("c3", "Brand", "google", ""))

	mappings, err := store.CampaignGoalMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 3)

	assert.Equal(t, []domain.GoalKind{domain.GoalOrders, domain.GoalFollowers}, mappings[0].Goals)
	assert.Equal(t, "meta", mappings[0].Platform)
	assert.Equal(t, []domain.GoalKind{domain.GoalUsers, domain.GoalSMS}, mappings[1].UniqueGoals())
	assert.Empty(t, mappings[2].Goals)
}

func TestPostgresStore_QueryError(t *testing.T) {
	store, mock := setupPostgresStore(t)
	w := januaryWindow(t)

	mock.ExpectQuery("FROM orders").WillReturnError(errors.New("connection reset"))

	_, err := store.GoalEvents(context.Background(), w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goal_events")
}

func TestPostgresStore_CredentialStatus(t *testing.T) {
	store, mock := setupPostgresStore(t)
	synced := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

	mock.ExpectQuery("FROM platform_credentials").
		WithArgs("meta").
		WillReturnRows(sqlmock.NewRows([]string{"connected", "last_sync_at"}).AddRow(true, synced))
	mock.ExpectQuery("FROM platform_credentials").
		WithArgs("tiktok").
		WillReturnError(sql.ErrNoRows)

	status, err := store.CredentialStatus(context.Background(), "Meta")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	require.NotNil(t, status.LastSyncAt)
	assert.Equal(t, synced, *status.LastSyncAt)

	status, err = store.CredentialStatus(context.Background(), "tiktok")
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Nil(t, status.LastSyncAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
