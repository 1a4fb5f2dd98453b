package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for sqlx
	"github.com/jmoiron/sqlx"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

const sqlGoalEvents = `
SELECT 'order' AS record_type, created_at::text AS occurred_at, COALESCE(source, '') AS source
FROM orders
WHERE created_at >= $1 AND created_at < $2
UNION ALL
SELECT 'user' AS record_type, created_at::text AS occurred_at, COALESCE(source, '') AS source
FROM users
WHERE created_at >= $1 AND created_at < $2
UNION ALL
SELECT 'sms' AS record_type, created_at::text AS occurred_at, COALESCE(source, '') AS source
FROM sms_subscribers
WHERE created_at >= $1 AND created_at < $2
`

const sqlAdSpend = `
SELECT date::text AS date, platform, campaign_id, COALESCE(campaign_name, '') AS campaign_name,
       COALESCE(spend::text, '') AS spend
FROM ad_spend
WHERE date >= $1::date AND date <= $2::date
ORDER BY date, platform, campaign_id
`

const sqlFollowerSnapshots = `
SELECT platform, date::text AS date, COALESCE(count::text, '') AS count
FROM follower_snapshots
WHERE date >= $1::date AND date <= $2::date
ORDER BY platform, date
`

const sqlCampaignGoalMappings = `
SELECT campaign_id, COALESCE(campaign_name, '') AS campaign_name, platform, COALESCE(goals, '') AS goals
FROM campaign_goal_mappings
ORDER BY campaign_id
`

const sqlCredentialStatus = `
SELECT COALESCE(access_token, '') <> '' AS connected, last_sync_at
FROM platform_credentials
WHERE platform = $1
`

// PostgresStore reads the hosted data store's tables directly.
type PostgresStore struct {
	db      *sqlx.DB
	rows    rowNormalizer
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// OpenPostgres connects with the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sqlx.DB, dates *civildate.Normalizer, logger *logger.Logger, metrics *metrics.Metrics) *PostgresStore {
	return &PostgresStore{
		db:      db,
		rows:    rowNormalizer{dates: dates, logger: logger, metrics: metrics},
		logger:  logger,
		metrics: metrics,
	}
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GoalEvents(ctx context.Context, w domain.Window) ([]domain.GoalEvent, error) {
	var rows []goalEventRow
	if err := s.selectRows(ctx, "goal_events", &rows, sqlGoalEvents, w.From, w.To); err != nil {
		return nil, err
	}
	return s.rows.goalEvents(ctx, rows), nil
}

func (s *PostgresStore) AdSpend(ctx context.Context, w domain.Window) ([]domain.AdSpendRecord, error) {
	var rows []adSpendRow
	if err := s.selectRows(ctx, "ad_spend", &rows, sqlAdSpend, w.Range.Start, w.Range.End); err != nil {
		return nil, err
	}
	return s.rows.adSpend(ctx, rows), nil
}

func (s *PostgresStore) FollowerSnapshots(ctx context.Context, w domain.Window) ([]domain.FollowerSnapshot, error) {
	var rows []followerSnapshotRow
	if err := s.selectRows(ctx, "follower_snapshots", &rows, sqlFollowerSnapshots, w.Range.Start, w.Range.End); err != nil {
		return nil, err
	}
	return s.rows.followerSnapshots(ctx, rows), nil
}

func (s *PostgresStore) CampaignGoalMappings(ctx context.Context) ([]domain.CampaignGoalMapping, error) {
	var rows []campaignGoalMappingRow
	if err := s.selectRows(ctx, "campaign_goal_mappings", &rows, sqlCampaignGoalMappings); err != nil {
		return nil, err
	}
	return s.rows.campaignGoalMappings(rows), nil
}

func (s *PostgresStore) CredentialStatus(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	start := time.Now()
	platform = domain.NormalizePlatform(platform)

	var row struct {
		Connected  bool         `db:"connected"`
		LastSyncAt sql.NullTime `db:"last_sync_at"`
	}
	err := s.db.GetContext(ctx, &row, sqlCredentialStatus, platform)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordStoreRead("credential_status", "not_found", time.Since(start))
		return &domain.CredentialStatus{Platform: platform}, nil
	}
	if err != nil {
		s.metrics.RecordStoreFailure("credential_status", "query")
		return nil, fmt.Errorf("failed to get credential status: %w", err)
	}
	s.metrics.RecordStoreRead("credential_status", "success", time.Since(start))

	status := &domain.CredentialStatus{Platform: platform, Connected: row.Connected}
	if row.LastSyncAt.Valid {
		t := row.LastSyncAt.Time.UTC()
		status.LastSyncAt = &t
	}
	return status, nil
}

func (s *PostgresStore) selectRows(ctx context.Context, query string, dest any, stmt string, args ...any) error {
	start := time.Now()

	if err := s.db.SelectContext(ctx, dest, stmt, args...); err != nil {
		s.metrics.RecordStoreFailure(query, "query")
		s.logger.WithContext(ctx).WithError(err).WithField("query", query).Error("Event store query failed")
		return fmt.Errorf("failed to query %s: %w", query, err)
	}

	duration := time.Since(start)
	s.metrics.RecordStoreRead(query, "success", duration)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"query":    query,
		"duration": duration,
	}).Debug("Event store query completed")
	return nil
}
