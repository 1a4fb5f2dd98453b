package analytics

import (
	"math"
	"sort"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
)

// InterpolateFollowerGrowth fills each bucket's Followers with a daily delta
// derived from sparse cumulative snapshots.
//
// For every consecutive pair of snapshots the growth is spread flat over the
// gap: each day after the earlier snapshot up to and including the later one
// gets total/days rounded half up, so -2.5 becomes -2. The rounded days need
// not add up to the exact total.
// Snapshots of different platforms form separate series whose daily values
// are summed. With fewer than two snapshots in a series it contributes zero.
func InterpolateFollowerGrowth(buckets []domain.DailyBucket, snapshots []domain.FollowerSnapshot) []domain.DailyBucket {
	out := domain.CloneBuckets(buckets)
	idx := indexByDate(out)

	growth := make(map[string]int64, len(out))
	for _, series := range seriesByPlatform(snapshots) {
		for date, perDay := range interpolateSeries(series) {
			growth[date] += perDay
		}
	}

	for i := range out {
		out[i].Followers = 0
	}
	for date, g := range growth {
		if i, ok := idx[date]; ok {
			out[i].Followers = g
		}
	}
	return out
}

func seriesByPlatform(snapshots []domain.FollowerSnapshot) [][]domain.FollowerSnapshot {
	byPlatform := make(map[string][]domain.FollowerSnapshot)
	var order []string
	for _, s := range snapshots {
		p := domain.NormalizePlatform(s.Platform)
		if _, ok := byPlatform[p]; !ok {
			order = append(order, p)
		}
		byPlatform[p] = append(byPlatform[p], s)
	}
	sort.Strings(order)

	out := make([][]domain.FollowerSnapshot, 0, len(order))
	for _, p := range order {
		series := byPlatform[p]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].CivilDate < series[j].CivilDate
		})
		out = append(out, series)
	}
	return out
}

// interpolateSeries returns the per-day growth of one sorted series keyed by
// civil date. Later pairs overwrite earlier ones on the same day.
func interpolateSeries(series []domain.FollowerSnapshot) map[string]int64 {
	perDay := make(map[string]int64)
	if len(series) < 2 {
		return perDay
	}

	for k := 1; k < len(series); k++ {
		prev, curr := series[k-1], series[k]
		days, err := civildate.DaysBetween(prev.CivilDate, curr.CivilDate)
		if err != nil || days < 1 {
			continue
		}
		total := curr.Count - prev.Count
		growthPerDay := int64(math.Floor(float64(total)/float64(days) + 0.5))

		for d := 1; d <= days; d++ {
			date, err := civildate.AddDays(prev.CivilDate, d)
			if err != nil {
				break
			}
			perDay[date] = growthPerDay
		}
	}
	return perDay
}
