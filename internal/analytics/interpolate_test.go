package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthdash/internal/domain"
)

func followersOf(buckets []domain.DailyBucket) []int64 {
	out := make([]int64, len(buckets))
	for i, b := range buckets {
		out[i] = b.Followers
	}
	return out
}

func TestInterpolateFollowerGrowth_FlatDistribution(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-05"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2025-01-05", Count: 150},
		{Platform: "meta", CivilDate: "2024-12-31", Count: 100},
	}

	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{10, 10, 10, 10, 10}, followersOf(got))
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, followersOf(buckets), "input must not change")
}

func TestInterpolateFollowerGrowth_RoundingDrift(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-03"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2024-12-31", Count: 100},
		{Platform: "meta", CivilDate: "2025-01-03", Count: 110},
	}

	// 10 over 3 days rounds to 3 per day; the 1-follower drift is accepted.
	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{3, 3, 3}, followersOf(got))
}

func TestInterpolateFollowerGrowth_HalvesRoundUp(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-04"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2024-12-31", Count: 100},
		{Platform: "meta", CivilDate: "2025-01-02", Count: 95},
		{Platform: "meta", CivilDate: "2025-01-04", Count: 100},
	}

	// -5 over 2 days is -2.5 and rounds to -2; +5 over 2 days rounds to 3.
	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{-2, -2, 3, 3}, followersOf(got))
}

func TestInterpolateFollowerGrowth_ConsecutivePairs(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-04"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2024-12-31", Count: 100},
		{Platform: "meta", CivilDate: "2025-01-01", Count: 105},
		{Platform: "meta", CivilDate: "2025-01-01", Count: 105},
		{Platform: "meta", CivilDate: "2025-01-03", Count: 101},
		{Platform: "meta", CivilDate: "2025-01-04", Count: 120},
	}

	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{5, -2, -2, 19}, followersOf(got))
}

func TestInterpolateFollowerGrowth_NotEnoughSnapshots(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-03"})
	require.NoError(t, err)
	buckets[1].Followers = 42

	got := InterpolateFollowerGrowth(buckets, []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2025-01-02", Count: 500},
	})
	assert.Equal(t, []int64{0, 0, 0}, followersOf(got))

	got = InterpolateFollowerGrowth(buckets, nil)
	assert.Equal(t, []int64{0, 0, 0}, followersOf(got))
}

func TestInterpolateFollowerGrowth_OutsideRangeIgnored(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-03", End: "2025-01-04"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "meta", CivilDate: "2025-01-01", Count: 0},
		{Platform: "meta", CivilDate: "2025-01-05", Count: 40},
	}

	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{10, 10}, followersOf(got))
}

func TestInterpolateFollowerGrowth_PlatformsSummed(t *testing.T) {
	buckets, err := Skeleton(domain.DateRange{Start: "2025-01-01", End: "2025-01-02"})
	require.NoError(t, err)

	snapshots := []domain.FollowerSnapshot{
		{Platform: "instagram", CivilDate: "2024-12-31", Count: 1000},
		{Platform: "tiktok", CivilDate: "2024-12-31", Count: 50},
		{Platform: "instagram", CivilDate: "2025-01-02", Count: 1010},
		{Platform: "tiktok", CivilDate: "2025-01-02", Count: 54},
	}

	got := InterpolateFollowerGrowth(buckets, snapshots)
	assert.Equal(t, []int64{7, 7}, followersOf(got))
}
