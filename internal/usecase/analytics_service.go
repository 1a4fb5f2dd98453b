package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"growthdash/internal/analytics"
	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

// ViewRequest is one dashboard load: a range, a view mode and the session
// whose newer requests supersede this one.
type ViewRequest struct {
	Range   domain.DateRange
	Mode    domain.ViewMode
	Session string
}

// ViewResult is everything one dashboard load renders.
type ViewResult struct {
	Range   domain.DateRange                                    `json:"range"`
	Mode    domain.ViewMode                                     `json:"mode"`
	Days    []domain.DayView                                    `json:"days"`
	Sources map[domain.RecordType][]domain.SourceBreakdownEntry `json:"sources"`
	Summary domain.LifetimeCostSummary                          `json:"summary"`
	Stats   analytics.BuildStats                                `json:"stats"`
}

// FetchError reports every event store read that failed during one request.
// It matches domain.ErrFetchFailed under errors.Is.
type FetchError struct {
	Reads []string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrFetchFailed, strings.Join(e.Reads, ", "), e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{domain.ErrFetchFailed, e.Err}
}

// AnalyticsOptions configures the analytics service.
type AnalyticsOptions struct {
	DefaultRangeDays int
	MaxRangeDays     int // longest range one request may span, in civil days
	Summary          analytics.SummaryConfig
}

// AnalyticsService reads the event store and runs the analytics pipeline.
type AnalyticsService struct {
	store            domain.EventStore
	dates            *civildate.Normalizer
	summarizer       *analytics.Summarizer
	tracker          *RequestTracker
	defaultRangeDays int
	maxRangeDays     int
	now              func() time.Time
	logger           *logger.Logger
	metrics          *metrics.Metrics
}

func NewAnalyticsService(
	store domain.EventStore,
	dates *civildate.Normalizer,
	tracker *RequestTracker,
	opts AnalyticsOptions,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *AnalyticsService {
	days := opts.DefaultRangeDays
	if days <= 0 {
		days = 30
	}
	maxDays := opts.MaxRangeDays
	if maxDays <= 0 {
		maxDays = 731
	}
	return &AnalyticsService{
		store:            store,
		dates:            dates,
		summarizer:       analytics.NewSummarizer(opts.Summary),
		tracker:          tracker,
		defaultRangeDays: days,
		maxRangeDays:     maxDays,
		now:              time.Now,
		logger:           logger,
		metrics:          metrics,
	}
}

// ResolveRange fills in a missing bound. With neither bound the range is the
// last DefaultRangeDays civil days ending today.
func (s *AnalyticsService) ResolveRange(from, to string) (domain.DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	if to == "" {
		to = s.dates.Today(s.now())
	}
	if from == "" {
		start, err := civildate.AddDays(to, -(s.defaultRangeDays - 1))
		if err != nil {
			return domain.DateRange{}, err
		}
		from = start
	}

	r := domain.DateRange{Start: from, End: to}
	if err := s.validateRange(r); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}

// Compute runs the full pipeline for one dashboard load. A request superseded
// by a newer one for the same session returns domain.ErrStaleRequest and no
// result.
func (s *AnalyticsService) Compute(ctx context.Context, req ViewRequest) (*ViewResult, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"from": req.Range.Start,
		"to":   req.Range.End,
		"mode": req.Mode,
	})

	if err := s.validateRange(req.Range); err != nil {
		return nil, err
	}
	mode, err := domain.ParseViewMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	req.Mode = mode

	ctx, token := s.tracker.Begin(ctx, req.Session)
	defer token.Done()

	s.metrics.IncComputationsInProgress()
	defer s.metrics.DecComputationsInProgress()

	log.Info("Starting analytics computation")

	in, err := s.fetch(ctx, req.Range, allReads)
	if token.Stale() {
		s.metrics.RecordComputation(string(req.Mode), "stale", time.Since(start))
		log.Info("Discarding superseded analytics computation")
		return nil, domain.ErrStaleRequest
	}
	if err != nil {
		s.metrics.RecordComputation(string(req.Mode), "error", time.Since(start))
		log.WithError(err).Error("Analytics computation failed")
		return nil, err
	}

	events := inRange(req.Range, in.events)

	buckets, stats, err := analytics.BuildBuckets(req.Range, in.events, in.spend)
	if err != nil {
		s.metrics.RecordComputation(string(req.Mode), "error", time.Since(start))
		return nil, fmt.Errorf("failed to build buckets: %w", err)
	}
	s.metrics.RecordDropped("goal_events", stats.DroppedEvents)
	s.metrics.RecordDropped("ad_spend", stats.DroppedSpend)

	buckets = analytics.InterpolateFollowerGrowth(buckets, in.snapshots)

	days, err := analytics.Transform(req.Mode, buckets, in.spend, in.mappings)
	if err != nil {
		s.metrics.RecordComputation(string(req.Mode), "error", time.Since(start))
		return nil, fmt.Errorf("failed to transform buckets: %w", err)
	}

	result := &ViewResult{
		Range:   req.Range,
		Mode:    req.Mode,
		Days:    days,
		Sources: analytics.BreakdownByKind(events),
		Summary: s.summarizer.Summarize(req.Range, events, in.spend, in.snapshots),
		Stats:   stats,
	}

	if token.Stale() {
		s.metrics.RecordComputation(string(req.Mode), "stale", time.Since(start))
		log.Info("Discarding superseded analytics computation")
		return nil, domain.ErrStaleRequest
	}

	duration := time.Since(start)
	s.metrics.RecordComputation(string(req.Mode), "success", duration)
	log.WithFields(map[string]any{
		"days":           len(days),
		"events":         len(events),
		"spend_rows":     len(in.spend),
		"dropped_events": stats.DroppedEvents,
		"dropped_spend":  stats.DroppedSpend,
		"duration":       duration,
	}).Info("Analytics computation completed")

	return result, nil
}

// Summary computes only the lifetime cost summary for r.
func (s *AnalyticsService) Summary(ctx context.Context, r domain.DateRange) (*domain.LifetimeCostSummary, error) {
	start := time.Now()
	if err := s.validateRange(r); err != nil {
		return nil, err
	}

	in, err := s.fetch(ctx, r, readEvents|readSpend|readSnapshots)
	if err != nil {
		s.metrics.RecordComputation("summary", "error", time.Since(start))
		s.logger.WithContext(ctx).WithError(err).Error("Summary computation failed")
		return nil, err
	}

	summary := s.summarizer.Summarize(r, in.events, in.spend, in.snapshots)
	s.metrics.RecordComputation("summary", "success", time.Since(start))
	return &summary, nil
}

// Sources computes the per-kind source breakdown for r.
func (s *AnalyticsService) Sources(ctx context.Context, r domain.DateRange) (map[domain.RecordType][]domain.SourceBreakdownEntry, error) {
	start := time.Now()
	if err := s.validateRange(r); err != nil {
		return nil, err
	}

	in, err := s.fetch(ctx, r, readEvents)
	if err != nil {
		s.metrics.RecordComputation("sources", "error", time.Since(start))
		s.logger.WithContext(ctx).WithError(err).Error("Source breakdown failed")
		return nil, err
	}

	breakdown := analytics.BreakdownByKind(inRange(r, in.events))
	s.metrics.RecordComputation("sources", "success", time.Since(start))
	return breakdown, nil
}

// validateRange rejects malformed ranges and ranges longer than maxRangeDays.
func (s *AnalyticsService) validateRange(r domain.DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	span, err := civildate.DaysBetween(r.Start, r.End)
	if err != nil {
		return err
	}
	if span+1 > s.maxRangeDays {
		return fmt.Errorf("%w: %d days exceeds the limit of %d", domain.ErrInvalidRange, span+1, s.maxRangeDays)
	}
	return nil
}

type readSet uint8

const (
	readEvents readSet = 1 << iota
	readSpend
	readSnapshots
	readMappings

	allReads = readEvents | readSpend | readSnapshots | readMappings
)

type storeInputs struct {
	events    []domain.GoalEvent
	spend     []domain.AdSpendRecord
	snapshots []domain.FollowerSnapshot
	mappings  []domain.CampaignGoalMapping
}

// fetch runs the requested reads concurrently and waits for all of them.
// Snapshots start one day early so the first day has a baseline.
func (s *AnalyticsService) fetch(ctx context.Context, r domain.DateRange, reads readSet) (*storeInputs, error) {
	window, err := s.dates.Window(r)
	if err != nil {
		return nil, err
	}
	baselineStart, err := civildate.AddDays(r.Start, -1)
	if err != nil {
		return nil, err
	}
	snapshotWindow, err := s.dates.Window(domain.DateRange{Start: baselineStart, End: r.End})
	if err != nil {
		return nil, err
	}

	var (
		in     storeInputs
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	// Reads cancelled because a sibling failed are not failures of their own.
	record := func(name string, err error) error {
		if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() == nil) {
			mu.Lock()
			failed[name] = err
			mu.Unlock()
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if reads&readEvents != 0 {
		g.Go(func() error {
			events, err := s.store.GoalEvents(gctx, window)
			in.events = events
			return record("goal_events", err)
		})
	}
	if reads&readSpend != 0 {
		g.Go(func() error {
			spend, err := s.store.AdSpend(gctx, window)
			in.spend = spend
			return record("ad_spend", err)
		})
	}
	if reads&readSnapshots != 0 {
		g.Go(func() error {
			snapshots, err := s.store.FollowerSnapshots(gctx, snapshotWindow)
			in.snapshots = snapshots
			return record("follower_snapshots", err)
		})
	}
	if reads&readMappings != 0 {
		g.Go(func() error {
			mappings, err := s.store.CampaignGoalMappings(gctx)
			in.mappings = mappings
			return record("campaign_goal_mappings", err)
		})
	}

	if err := g.Wait(); err != nil {
		if len(failed) == 0 {
			failed["event_store"] = err
		}
		return nil, newFetchError(failed)
	}
	return &in, nil
}

// newFetchError joins the per-read errors in read-name order.
func newFetchError(failed map[string]error) *FetchError {
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, failed[name]))
	}
	return &FetchError{Reads: names, Err: errors.Join(errs...)}
}

func inRange(r domain.DateRange, events []domain.GoalEvent) []domain.GoalEvent {
	out := make([]domain.GoalEvent, 0, len(events))
	for _, e := range events {
		if r.Contains(e.CivilDate) {
			out = append(out, e)
		}
	}
	return out
}
