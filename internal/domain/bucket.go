package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used across the service.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks that both ends parse and Start is not after End.
func (r DateRange) Validate() error {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrInvalidRange, r.Start)
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return fmt.Errorf("%w: end %q", ErrInvalidRange, r.End)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Days enumerates every civil date in the range in ascending order.
func (r DateRange) Days() ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	start, _ := time.Parse(DateLayout, r.Start)
	end, _ := time.Parse(DateLayout, r.End)

	days := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// Contains reports whether date falls inside the range. Dates compare
// lexically because of the fixed-width layout.
func (r DateRange) Contains(date string) bool {
	return date >= r.Start && date <= r.End
}

// DailyBucket holds one civil day of goal counts and spend.
// Followers is a daily delta, not a cumulative count.
type DailyBucket struct {
	Date             string                     `json:"date"`
	Followers        int64                      `json:"followers"`
	SMS              int64                      `json:"sms"`
	Users            int64                      `json:"users"`
	Orders           int64                      `json:"orders"`
	TotalSpend       decimal.Decimal            `json:"total_spend"`
	PerPlatformSpend map[string]decimal.Decimal `json:"per_platform_spend"`
}

// NewDailyBucket returns a zero-valued bucket for date.
func NewDailyBucket(date string) DailyBucket {
	return DailyBucket{
		Date:             date,
		TotalSpend:       decimal.Zero,
		PerPlatformSpend: map[string]decimal.Decimal{},
	}
}

// Count returns the bucket's value for a goal.
func (b DailyBucket) Count(goal GoalKind) int64 {
	switch goal {
	case GoalFollowers:
		return b.Followers
	case GoalSMS:
		return b.SMS
	case GoalUsers:
		return b.Users
	case GoalOrders:
		return b.Orders
	default:
		return 0
	}
}

// Add increases the bucket's count for goal by n. Unknown goals are ignored.
func (b *DailyBucket) Add(goal GoalKind, n int64) {
	switch goal {
	case GoalFollowers:
		b.Followers += n
	case GoalSMS:
		b.SMS += n
	case GoalUsers:
		b.Users += n
	case GoalOrders:
		b.Orders += n
	}
}

// Clone returns a deep copy so callers can change it without touching b.
func (b DailyBucket) Clone() DailyBucket {
	c := b
	c.PerPlatformSpend = make(map[string]decimal.Decimal, len(b.PerPlatformSpend))
	for k, v := range b.PerPlatformSpend {
		c.PerPlatformSpend[k] = v
	}
	return c
}

// CloneBuckets deep-copies a bucket sequence.
func CloneBuckets(buckets []DailyBucket) []DailyBucket {
	out := make([]DailyBucket, len(buckets))
	for i, b := range buckets {
		out[i] = b.Clone()
	}
	return out
}
