package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthdash/internal/analytics"
	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/internal/infrastructure"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

var exampleRange = domain.DateRange{Start: "2025-01-01", End: "2025-01-03"}

func seededStore() *infrastructure.MemoryStore {
	store := infrastructure.NewMemoryStore(logger.Discard())
	store.AddGoalEvents(
		domain.GoalEvent{RecordType: domain.RecordOrder, CivilDate: "2025-01-01", Source: "ig"},
		domain.GoalEvent{RecordType: domain.RecordOrder, CivilDate: "2025-01-01", Source: "ig"},
		domain.GoalEvent{RecordType: domain.RecordOrder, CivilDate: "2025-01-03", Source: ""},
		domain.GoalEvent{RecordType: domain.RecordUser, CivilDate: "2025-01-02", Source: "igdm"},
		domain.GoalEvent{RecordType: domain.RecordSMS, CivilDate: "2025-01-02", Source: "google"},
	)
	store.AddAdSpend(
		domain.AdSpendRecord{CivilDate: "2025-01-01", Platform: "meta", CampaignID: "X", Spend: decimal.RequireFromString("30")},
		domain.AdSpendRecord{CivilDate: "2025-01-02", Platform: "google", CampaignID: "Y", Spend: decimal.RequireFromString("10")},
	)
	store.AddFollowerSnapshots(
		domain.FollowerSnapshot{Platform: "meta", CivilDate: "2024-12-31", Count: 100},
		domain.FollowerSnapshot{Platform: "meta", CivilDate: "2025-01-03", Count: 130},
	)
	store.SetCampaignGoalMappings(
		domain.CampaignGoalMapping{CampaignID: "X", Platform: "meta", Goals: []domain.GoalKind{domain.GoalOrders, domain.GoalFollowers}},
	)
	return store
}

func newTestService(t *testing.T, store domain.EventStore) *AnalyticsService {
	t.Helper()
	dates, err := civildate.New("America/Chicago")
	require.NoError(t, err)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	return NewAnalyticsService(store, dates, NewRequestTracker(m), AnalyticsOptions{
		DefaultRangeDays: 7,
		Summary: analytics.SummaryConfig{
			FollowerPlatform: "meta",
			SignupPlatform:   "google",
		},
	}, logger.Discard(), m)
}

func TestAnalyticsService_ComputeCount(t *testing.T) {
	svc := newTestService(t, seededStore())

	result, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Mode: domain.ModeCount})
	require.NoError(t, err)
	require.Len(t, result.Days, 3)

	assert.Equal(t, int64(2), result.Days[0].Orders)
	assert.Equal(t, int64(1), result.Days[1].Users)
	assert.Equal(t, int64(1), result.Days[1].SMS)
	assert.Equal(t, int64(1), result.Days[2].Orders)
	assert.Nil(t, result.Days[0].Cost)

	// 100 -> 130 over three days is 10 a day.
	for _, d := range result.Days {
		assert.Equal(t, int64(10), d.Followers)
	}

	assert.Equal(t, int64(30), result.Summary.FollowerDelta)
	assert.Equal(t, 1, result.Summary.SocialSignups)
	assert.Equal(t, 1, result.Summary.PaidSignups)
	assert.Equal(t, 1.0, result.Summary.CostPerFollower)
	assert.Equal(t, 10.0, result.Summary.CostPerPaidSignup)

	require.Len(t, result.Sources[domain.RecordOrder], 2)
	assert.Equal(t, 2, result.Sources[domain.RecordOrder][0].Count)
}

func TestAnalyticsService_ComputeEmptyModeIsCount(t *testing.T) {
	svc := newTestService(t, seededStore())

	result, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCount, result.Mode)
}

func TestAnalyticsService_ComputeCostAndDrill(t *testing.T) {
	svc := newTestService(t, seededStore())

	cost, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Mode: domain.ModeCost})
	require.NoError(t, err)
	assert.Equal(t, 15.0, cost.Days[0].Cost[domain.GoalOrders])
	assert.Equal(t, 10.0, cost.Days[1].Cost[domain.GoalUsers])

	drill, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Mode: domain.ModeDrill})
	require.NoError(t, err)
	assert.Equal(t, 7.5, drill.Days[0].Cost[domain.GoalOrders])
	assert.Equal(t, 1.5, drill.Days[0].Cost[domain.GoalFollowers])
	assert.Zero(t, drill.Days[1].Cost[domain.GoalUsers])
}

func TestAnalyticsService_ComputeRejectsBadInput(t *testing.T) {
	svc := newTestService(t, seededStore())

	_, err := svc.Compute(context.Background(), ViewRequest{Range: domain.DateRange{Start: "2025-01-03", End: "2025-01-01"}})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Mode: "weekly"})
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

type failingStore struct {
	domain.EventStore
	eventsErr error
	spendErr  error
}

func (s *failingStore) GoalEvents(ctx context.Context, w domain.Window) ([]domain.GoalEvent, error) {
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	return s.EventStore.GoalEvents(ctx, w)
}

func (s *failingStore) AdSpend(ctx context.Context, w domain.Window) ([]domain.AdSpendRecord, error) {
	if s.spendErr != nil {
		return nil, s.spendErr
	}
	return s.EventStore.AdSpend(ctx, w)
}

func TestAnalyticsService_FetchFailureFailsWholeCompute(t *testing.T) {
	eventsErr := errors.New("events timeout")
	spendErr := errors.New("spend timeout")
	svc := newTestService(t, &failingStore{EventStore: seededStore(), eventsErr: eventsErr, spendErr: spendErr})

	result, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange})
	require.Error(t, err)
	assert.Nil(t, result)

	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.ErrorIs(t, err, eventsErr)
	assert.ErrorIs(t, err, spendErr)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, []string{"ad_spend", "goal_events"}, fetchErr.Reads)
}

func TestAnalyticsService_SingleFailingRead(t *testing.T) {
	svc := newTestService(t, &failingStore{EventStore: seededStore(), spendErr: errors.New("boom")})

	_, err := svc.Summary(context.Background(), exampleRange)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)

	// Sources does not read spend.
	sources, err := svc.Sources(context.Background(), exampleRange)
	require.NoError(t, err)
	assert.Len(t, sources[domain.RecordUser], 1)
}

// blockingStore parks the first goal events read until its context ends.
type blockingStore struct {
	domain.EventStore
	calls   atomic.Int32
	entered chan struct{}
}

func (s *blockingStore) GoalEvents(ctx context.Context, w domain.Window) ([]domain.GoalEvent, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.EventStore.GoalEvents(ctx, w)
}

func TestAnalyticsService_LatestRequestWins(t *testing.T) {
	store := &blockingStore{EventStore: seededStore(), entered: make(chan struct{})}
	svc := newTestService(t, store)

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Session: "tab-1"})
	}()

	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the store")
	}

	second, err := svc.Compute(context.Background(), ViewRequest{Range: exampleRange, Mode: domain.ModeCost, Session: "tab-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCost, second.Mode)

	wg.Wait()
	assert.ErrorIs(t, firstErr, domain.ErrStaleRequest)
}

func TestAnalyticsService_ResolveRange(t *testing.T) {
	svc := newTestService(t, seededStore())
	// 03:00 UTC on Jan 10 is still Jan 9 in Chicago.
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC) }

	r, err := svc.ResolveRange("", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DateRange{Start: "2025-01-03", End: "2025-01-09"}, r)

	r, err = svc.ResolveRange("", "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-26", r.Start)

	r, err = svc.ResolveRange("2025-01-05", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DateRange{Start: "2025-01-05", End: "2025-01-09"}, r)

	_, err = svc.ResolveRange("01/05/2025", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestAnalyticsService_RangeLimit(t *testing.T) {
	dates, err := civildate.New("America/Chicago")
	require.NoError(t, err)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	store := &failingStore{EventStore: seededStore(), eventsErr: errors.New("store must not be read")}
	svc := NewAnalyticsService(store, dates, NewRequestTracker(m), AnalyticsOptions{
		DefaultRangeDays: 7,
		MaxRangeDays:     31,
	}, logger.Discard(), m)

	r, err := svc.ResolveRange("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", r.End)

	_, err = svc.ResolveRange("2025-01-01", "2025-02-01")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	huge := domain.DateRange{Start: "0001-01-01", End: "9999-12-31"}
	_, err = svc.Compute(context.Background(), ViewRequest{Range: huge, Mode: domain.ModeCost})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
	assert.NotErrorIs(t, err, domain.ErrFetchFailed)

	_, err = svc.Summary(context.Background(), huge)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = svc.Sources(context.Background(), huge)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestAnalyticsService_DefaultRangeLimit(t *testing.T) {
	svc := newTestService(t, seededStore())

	_, err := svc.ResolveRange("2024-01-01", "2025-12-31")
	require.NoError(t, err)

	_, err = svc.ResolveRange("2024-01-01", "2026-01-01")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
