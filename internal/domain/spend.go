package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AdSpendRecord is one day of spend for a campaign on an ad platform.
// Several records may share a date, platform and campaign.
type AdSpendRecord struct {
	CivilDate    string          `json:"civil_date"`
	Platform     string          `json:"platform"`
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	Spend        decimal.Decimal `json:"spend"`
}

// ParseSpend converts a raw spend value into a non-negative decimal.
// Non-numeric and negative values become zero; ok is false when that happened.
func ParseSpend(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizePlatform lowercases a platform name so spend and mappings line up.
func NormalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
