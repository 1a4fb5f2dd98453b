package infrastructure

import (
	"context"
	"sync"
	"time"

	"growthdash/internal/domain"
	"growthdash/pkg/logger"
)

// MemoryStore implements domain.EventStore and domain.CredentialStore with
// date-keyed maps. It backs local runs and service tests.
type MemoryStore struct {
	events      map[string][]domain.GoalEvent
	spend       map[string][]domain.AdSpendRecord
	snapshots   map[string][]domain.FollowerSnapshot
	mappings    []domain.CampaignGoalMapping
	credentials map[string]domain.CredentialStatus
	mutex       sync.RWMutex
	logger      *logger.Logger
}

func NewMemoryStore(logger *logger.Logger) *MemoryStore {
	return &MemoryStore{
		events:      make(map[string][]domain.GoalEvent),
		spend:       make(map[string][]domain.AdSpendRecord),
		snapshots:   make(map[string][]domain.FollowerSnapshot),
		credentials: make(map[string]domain.CredentialStatus),
		logger:      logger,
	}
}

func (r *MemoryStore) AddGoalEvents(events ...domain.GoalEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, e := range events {
		r.events[e.CivilDate] = append(r.events[e.CivilDate], e)
	}
	r.logger.WithField("count", len(events)).Debug("Stored goal events in memory")
}

func (r *MemoryStore) AddAdSpend(records ...domain.AdSpendRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, s := range records {
		r.spend[s.CivilDate] = append(r.spend[s.CivilDate], s)
	}
	r.logger.WithField("count", len(records)).Debug("Stored ad spend in memory")
}

func (r *MemoryStore) AddFollowerSnapshots(snapshots ...domain.FollowerSnapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, s := range snapshots {
		r.snapshots[s.CivilDate] = append(r.snapshots[s.CivilDate], s)
	}
	r.logger.WithField("count", len(snapshots)).Debug("Stored follower snapshots in memory")
}

func (r *MemoryStore) SetCampaignGoalMappings(mappings ...domain.CampaignGoalMapping) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.mappings = append([]domain.CampaignGoalMapping(nil), mappings...)
}

func (r *MemoryStore) SetCredentialStatus(status domain.CredentialStatus) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.credentials[domain.NormalizePlatform(status.Platform)] = status
}

func (r *MemoryStore) GoalEvents(ctx context.Context, w domain.Window) ([]domain.GoalEvent, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return collectByDate(ctx, r.events, w.Range)
}

func (r *MemoryStore) AdSpend(ctx context.Context, w domain.Window) ([]domain.AdSpendRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return collectByDate(ctx, r.spend, w.Range)
}

func (r *MemoryStore) FollowerSnapshots(ctx context.Context, w domain.Window) ([]domain.FollowerSnapshot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return collectByDate(ctx, r.snapshots, w.Range)
}

func (r *MemoryStore) CampaignGoalMappings(ctx context.Context) ([]domain.CampaignGoalMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]domain.CampaignGoalMapping(nil), r.mappings...), nil
}

func (r *MemoryStore) CredentialStatus(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	platform = domain.NormalizePlatform(platform)
	if status, ok := r.credentials[platform]; ok {
		return &status, nil
	}
	return &domain.CredentialStatus{Platform: platform}, nil
}

func collectByDate[T any](ctx context.Context, data map[string][]T, rng domain.DateRange) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, err := time.Parse(domain.DateLayout, rng.Start)
	if err != nil {
		return nil, domain.ErrInvalidRange
	}
	to, err := time.Parse(domain.DateLayout, rng.End)
	if err != nil {
		return nil, domain.ErrInvalidRange
	}

	var result []T
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if rows, exists := data[date.Format(domain.DateLayout)]; exists {
			result = append(result, rows...)
		}
	}
	return result, nil
}
