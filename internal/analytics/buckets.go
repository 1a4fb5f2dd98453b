// Package analytics turns goal events, ad spend and follower snapshots into
// daily cost-per-acquisition series. Everything here is pure: inputs are never
// modified and the same inputs always give the same output.
package analytics

import (
	"growthdash/internal/domain"
)

// BuildStats counts rows the builder dropped for falling outside the range.
type BuildStats struct {
	DroppedEvents int `json:"dropped_events"`
	DroppedSpend  int `json:"dropped_spend"`
}

// BuildBuckets returns one bucket per civil date in r, ascending, with goal
// counts and spend folded in. Rows dated outside r are dropped.
func BuildBuckets(r domain.DateRange, events []domain.GoalEvent, spend []domain.AdSpendRecord) ([]domain.DailyBucket, BuildStats, error) {
	skeleton, err := Skeleton(r)
	if err != nil {
		return nil, BuildStats{}, err
	}

	var stats BuildStats
	buckets, dropped := foldEvents(skeleton, events)
	stats.DroppedEvents = dropped
	buckets, dropped = foldSpend(buckets, spend)
	stats.DroppedSpend = dropped

	return buckets, stats, nil
}

// Skeleton returns the zero-valued bucket sequence for r.
func Skeleton(r domain.DateRange) ([]domain.DailyBucket, error) {
	days, err := r.Days()
	if err != nil {
		return nil, err
	}
	buckets := make([]domain.DailyBucket, len(days))
	for i, day := range days {
		buckets[i] = domain.NewDailyBucket(day)
	}
	return buckets, nil
}

func indexByDate(buckets []domain.DailyBucket) map[string]int {
	idx := make(map[string]int, len(buckets))
	for i, b := range buckets {
		idx[b.Date] = i
	}
	return idx
}

func foldEvents(in []domain.DailyBucket, events []domain.GoalEvent) ([]domain.DailyBucket, int) {
	out := domain.CloneBuckets(in)
	idx := indexByDate(out)

	dropped := 0
	for _, e := range events {
		i, ok := idx[e.CivilDate]
		if !ok {
			dropped++
			continue
		}
		goal, ok := e.RecordType.Goal()
		if !ok {
			dropped++
			continue
		}
		out[i].Add(goal, 1)
	}
	return out, dropped
}

func foldSpend(in []domain.DailyBucket, spend []domain.AdSpendRecord) ([]domain.DailyBucket, int) {
	out := domain.CloneBuckets(in)
	idx := indexByDate(out)

	dropped := 0
	for _, s := range spend {
		i, ok := idx[s.CivilDate]
		if !ok {
			dropped++
			continue
		}
		platform := domain.NormalizePlatform(s.Platform)
		out[i].TotalSpend = out[i].TotalSpend.Add(s.Spend)
		out[i].PerPlatformSpend[platform] = out[i].PerPlatformSpend[platform].Add(s.Spend)
	}
	return out, dropped
}
