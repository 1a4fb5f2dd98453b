package analytics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"growthdash/internal/domain"
)

// Transform derives the presentation for mode from the daily buckets. Spend
// records and mappings are only consulted in drill mode.
func Transform(mode domain.ViewMode, buckets []domain.DailyBucket, spend []domain.AdSpendRecord, mappings []domain.CampaignGoalMapping) ([]domain.DayView, error) {
	switch mode {
	case domain.ModeCount:
		return CountView(buckets), nil
	case domain.ModeCost:
		return CostView(buckets), nil
	case domain.ModeDrill:
		return DrillView(buckets, spend, mappings), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}
}

// CountView returns the buckets' goal counts unchanged.
func CountView(buckets []domain.DailyBucket) []domain.DayView {
	out := make([]domain.DayView, len(buckets))
	for i, b := range buckets {
		out[i] = newDayView(b)
	}
	return out
}

// CostView divides each day's combined spend by every goal's count. It does
// not know which platform funded which goal.
func CostView(buckets []domain.DailyBucket) []domain.DayView {
	out := make([]domain.DayView, len(buckets))
	for i, b := range buckets {
		v := newDayView(b)
		v.Cost = make(map[domain.GoalKind]float64, len(domain.GoalKinds))
		for _, goal := range domain.GoalKinds {
			v.Cost[goal] = costPer(b.TotalSpend, b.Count(goal))
		}
		out[i] = v
	}
	return out
}

// DrillView attributes each spend record to the goals its campaign is mapped
// to, splitting evenly when a campaign serves several goals. Unmapped
// campaigns contribute nothing.
func DrillView(buckets []domain.DailyBucket, spend []domain.AdSpendRecord, mappings []domain.CampaignGoalMapping) []domain.DayView {
	goalsByCampaign := make(map[string][]domain.GoalKind, len(mappings))
	for _, m := range mappings {
		goalsByCampaign[m.CampaignID] = m.UniqueGoals()
	}

	spendByDay := make(map[string]map[domain.GoalKind]decimal.Decimal, len(buckets))
	for _, s := range spend {
		for goal, amount := range SplitSpend(s.Spend, goalsByCampaign[s.CampaignID]) {
			day, ok := spendByDay[s.CivilDate]
			if !ok {
				day = make(map[domain.GoalKind]decimal.Decimal, len(domain.GoalKinds))
				spendByDay[s.CivilDate] = day
			}
			day[goal] = day[goal].Add(amount)
		}
	}

	out := make([]domain.DayView, len(buckets))
	for i, b := range buckets {
		v := newDayView(b)
		v.Cost = make(map[domain.GoalKind]float64, len(domain.GoalKinds))
		v.GoalSpend = make(map[domain.GoalKind]decimal.Decimal, len(domain.GoalKinds))
		for _, goal := range domain.GoalKinds {
			goalSpend := spendByDay[b.Date][goal]
			v.GoalSpend[goal] = goalSpend
			if goalSpend.IsPositive() {
				v.Cost[goal] = costPer(goalSpend, b.Count(goal))
			} else {
				v.Cost[goal] = 0
			}
		}
		out[i] = v
	}
	return out
}

// SplitSpend divides amount evenly across goals. It returns nil when goals is
// empty.
func SplitSpend(amount decimal.Decimal, goals []domain.GoalKind) map[domain.GoalKind]decimal.Decimal {
	if len(goals) == 0 {
		return nil
	}
	share := amount.Div(decimal.NewFromInt(int64(len(goals))))
	out := make(map[domain.GoalKind]decimal.Decimal, len(goals))
	for _, g := range goals {
		out[g] = out[g].Add(share)
	}
	return out
}

func newDayView(b domain.DailyBucket) domain.DayView {
	platforms := make(map[string]decimal.Decimal, len(b.PerPlatformSpend))
	for k, v := range b.PerPlatformSpend {
		platforms[k] = v
	}
	return domain.DayView{
		Date:             b.Date,
		Followers:        b.Followers,
		SMS:              b.SMS,
		Users:            b.Users,
		Orders:           b.Orders,
		TotalSpend:       b.TotalSpend,
		PerPlatformSpend: platforms,
	}
}

// costPer returns spend/count, or 0 when count is not positive.
func costPer(spend decimal.Decimal, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return spend.Div(decimal.NewFromInt(count)).InexactFloat64()
}
