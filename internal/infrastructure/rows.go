package infrastructure

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

// goalEventRow is a goal event as stored: a raw timestamp, not yet a civil date.
type goalEventRow struct {
	RecordType string `db:"record_type" json:"record_type"`
	OccurredAt string `db:"occurred_at" json:"occurred_at"`
	Source     string `db:"source" json:"source"`
}

type adSpendRow struct {
	Date         string `db:"date" json:"date"`
	Platform     string `db:"platform" json:"platform"`
	CampaignID   string `db:"campaign_id" json:"campaign_id"`
	CampaignName string `db:"campaign_name" json:"campaign_name"`
	Spend        string `db:"spend" json:"spend"`
}

type followerSnapshotRow struct {
	Platform string `db:"platform" json:"platform"`
	Date     string `db:"date" json:"date"`
	Count    string `db:"count" json:"count"`
}

type campaignGoalMappingRow struct {
	CampaignID   string `db:"campaign_id" json:"campaign_id"`
	CampaignName string `db:"campaign_name" json:"campaign_name"`
	Platform     string `db:"platform" json:"platform"`
	Goals        string `db:"goals" json:"goals"`
}

// rowNormalizer turns raw store rows into domain records. Malformed values are
// coerced, logged and counted, never returned as errors.
type rowNormalizer struct {
	dates   *civildate.Normalizer
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func (n rowNormalizer) goalEvents(ctx context.Context, rows []goalEventRow) []domain.GoalEvent {
	log := n.logger.WithContext(ctx)

	events := make([]domain.GoalEvent, 0, len(rows))
	for _, row := range rows {
		date, ok := n.dates.ParseToCivilDate(row.OccurredAt)
		if !ok {
			log.WithFields(map[string]any{
				"record_type": row.RecordType,
				"occurred_at": row.OccurredAt,
			}).Warn("Unparsable event timestamp, using sentinel date")
			n.metrics.RecordMalformed("goal_events", "timestamp_parse")
		}
		events = append(events, domain.GoalEvent{
			RecordType: domain.RecordType(strings.ToLower(strings.TrimSpace(row.RecordType))),
			CivilDate:  date,
			Source:     strings.TrimSpace(row.Source),
		})
	}
	return events
}

func (n rowNormalizer) adSpend(ctx context.Context, rows []adSpendRow) []domain.AdSpendRecord {
	log := n.logger.WithContext(ctx)

	records := make([]domain.AdSpendRecord, 0, len(rows))
	for _, row := range rows {
		date, ok := n.dates.ParseToCivilDate(row.Date)
		if !ok {
			log.WithField("date", row.Date).Warn("Unparsable spend date, using sentinel date")
			n.metrics.RecordMalformed("ad_spend", "date_parse")
		}
		spend, ok := domain.ParseSpend(row.Spend)
		if !ok {
			log.WithFields(map[string]any{
				"campaign_id": row.CampaignID,
				"spend":       row.Spend,
			}).Warn("Malformed spend, using zero")
			n.metrics.RecordMalformed("ad_spend", "spend_parse")
		}
		records = append(records, domain.AdSpendRecord{
			CivilDate:    date,
			Platform:     domain.NormalizePlatform(row.Platform),
			CampaignID:   row.CampaignID,
			CampaignName: row.CampaignName,
			Spend:        spend,
		})
	}
	return records
}

func (n rowNormalizer) followerSnapshots(ctx context.Context, rows []followerSnapshotRow) []domain.FollowerSnapshot {
	log := n.logger.WithContext(ctx)

	snapshots := make([]domain.FollowerSnapshot, 0, len(rows))
	for _, row := range rows {
		date, ok := n.dates.ParseToCivilDate(row.Date)
		if !ok {
			log.WithField("date", row.Date).Warn("Unparsable snapshot date, skipping")
			n.metrics.RecordMalformed("follower_snapshots", "date_parse")
			continue
		}
		count, ok := parseCount(row.Count)
		if !ok {
			log.WithFields(map[string]any{
				"date":  row.Date,
				"count": row.Count,
			}).Warn("Malformed follower count, skipping")
			n.metrics.RecordMalformed("follower_snapshots", "count_parse")
			continue
		}
		if count < 0 {
			n.metrics.RecordMalformed("follower_snapshots", "negative_count")
			count = 0
		}
		snapshots = append(snapshots, domain.FollowerSnapshot{
			Platform:  domain.NormalizePlatform(row.Platform),
			CivilDate: date,
			Count:     count,
		})
	}
	return snapshots
}

func (n rowNormalizer) campaignGoalMappings(rows []campaignGoalMappingRow) []domain.CampaignGoalMapping {
	mappings := make([]domain.CampaignGoalMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, domain.CampaignGoalMapping{
			CampaignID:   row.CampaignID,
			CampaignName: row.CampaignName,
			Platform:     domain.NormalizePlatform(row.Platform),
			Goals:        splitGoals(row.Goals),
		})
	}
	return mappings
}

// splitGoals accepts "orders,followers" as well as a Postgres array literal
// like "{orders,followers}".
func splitGoals(raw string) []domain.GoalKind {
	raw = strings.Trim(strings.TrimSpace(raw), "{}")
	if raw == "" {
		return nil
	}
	var goals []domain.GoalKind
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			goals = append(goals, domain.GoalKind(part))
		}
	}
	return goals
}

// parseCount accepts integral counts written as "150", "150.0" or "1.5e2".
// Fractional counts are rounded.
func parseCount(raw string) (int64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}

// scalarString renders a JSON number or string as text.
func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case interface{ String() string }:
		return s.String()
	default:
		return ""
	}
}
