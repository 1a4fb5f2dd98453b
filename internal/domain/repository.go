package domain

import (
	"context"
	"time"
)

// Window is a civil date range together with its UTC instant bounds.
// From is inclusive and To exclusive.
type Window struct {
	Range DateRange
	From  time.Time
	To    time.Time
}

// EventStore is the read side of the hosted data store the engine consumes.
type EventStore interface {
	GoalEvents(ctx context.Context, w Window) ([]GoalEvent, error)
	AdSpend(ctx context.Context, w Window) ([]AdSpendRecord, error)
	FollowerSnapshots(ctx context.Context, w Window) ([]FollowerSnapshot, error)
	CampaignGoalMappings(ctx context.Context) ([]CampaignGoalMapping, error)
}

// CredentialStore reports connection status of ad platform credentials.
type CredentialStore interface {
	CredentialStatus(ctx context.Context, platform string) (*CredentialStatus, error)
}
