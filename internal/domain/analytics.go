package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrFetchFailed marks a failure of one or more event store reads.
	ErrFetchFailed = errors.New("event store read failed")
	// ErrStaleRequest is returned when a newer request superseded this one.
	ErrStaleRequest = errors.New("request superseded by a newer one")
	ErrInvalidRange = errors.New("invalid date range")
	ErrUnknownMode  = errors.New("unknown view mode")
	// ErrInvalidPlatform rejects an empty or malformed platform name.
	ErrInvalidPlatform = errors.New("invalid platform")
)

// ViewMode selects how daily buckets are presented.
type ViewMode string

const (
	ModeCount ViewMode = "count"
	ModeCost  ViewMode = "cost"
	ModeDrill ViewMode = "drill"
)

// ParseViewMode maps a query value onto a view mode. Empty means count.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ModeCount:
		return ModeCount, nil
	case ModeCost:
		return ModeCost, nil
	case ModeDrill:
		return ModeDrill, nil
	default:
		return "", ErrUnknownMode
	}
}

// DayView is one day of a view-mode transform. Cost is nil in count mode and
// GoalSpend is only set in drill mode.
type DayView struct {
	Date             string                       `json:"date"`
	Followers        int64                        `json:"followers"`
	SMS              int64                        `json:"sms"`
	Users            int64                        `json:"users"`
	Orders           int64                        `json:"orders"`
	TotalSpend       decimal.Decimal              `json:"total_spend"`
	PerPlatformSpend map[string]decimal.Decimal   `json:"per_platform_spend"`
	Cost             map[GoalKind]float64         `json:"cost,omitempty"`
	GoalSpend        map[GoalKind]decimal.Decimal `json:"goal_spend,omitempty"`
}

// SourceBreakdownEntry is one normalized source with its share of events.
type SourceBreakdownEntry struct {
	Source     string  `json:"source"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LifetimeCostSummary holds the headline cost figures for a window.
type LifetimeCostSummary struct {
	Start               string          `json:"start"`
	End                 string          `json:"end"`
	FollowerDelta       int64           `json:"follower_delta"`
	FollowerSpend       decimal.Decimal `json:"follower_spend"`
	SignupSpend         decimal.Decimal `json:"signup_spend"`
	SocialSignups       int             `json:"social_signups"`
	PaidSignups         int             `json:"paid_signups"`
	CostPerFollower     float64         `json:"cost_per_follower"`
	CostPerPaidSignup   float64         `json:"cost_per_paid_signup"`
	CostPerSocialSignup float64         `json:"cost_per_social_signup"`
}

// CredentialStatus reports whether an ad platform is connected.
type CredentialStatus struct {
	Platform   string     `json:"platform"`
	Connected  bool       `json:"connected"`
	LastSyncAt *time.Time `json:"last_sync_at"`
}
