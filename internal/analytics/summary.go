package analytics

import (
	"strings"

	"github.com/shopspring/decimal"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
)

// DefaultSocialSources are the DM tag codes that mark a signup as coming from
// a social conversation rather than paid traffic.
var DefaultSocialSources = []string{"igdm", "fbdm", "ttdm", "dm"}

// SummaryConfig names the platforms whose spend backs each headline figure.
type SummaryConfig struct {
	// FollowerPlatform funds follower growth and social signups.
	FollowerPlatform string
	// SignupPlatform funds paid signups.
	SignupPlatform string
	SocialSources  []string
}

// Summarizer computes lifetime cost figures for an explicit window.
type Summarizer struct {
	followerPlatform string
	signupPlatform   string
	social           map[string]struct{}
}

func NewSummarizer(cfg SummaryConfig) *Summarizer {
	sources := cfg.SocialSources
	if len(sources) == 0 {
		sources = DefaultSocialSources
	}
	social := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		social[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Summarizer{
		followerPlatform: domain.NormalizePlatform(cfg.FollowerPlatform),
		signupPlatform:   domain.NormalizePlatform(cfg.SignupPlatform),
		social:           social,
	}
}

// IsSocial reports whether a raw signup source belongs to the social cohort.
func (s *Summarizer) IsSocial(source string) bool {
	_, ok := s.social[strings.ToLower(strings.TrimSpace(source))]
	return ok
}

// Summarize computes the cost per follower, per paid signup and per social
// signup over r. Snapshots must include the day before r.Start; when either
// end snapshot is missing the follower delta is zero.
func (s *Summarizer) Summarize(r domain.DateRange, events []domain.GoalEvent, spend []domain.AdSpendRecord, snapshots []domain.FollowerSnapshot) domain.LifetimeCostSummary {
	summary := domain.LifetimeCostSummary{
		Start:         r.Start,
		End:           r.End,
		FollowerSpend: decimal.Zero,
		SignupSpend:   decimal.Zero,
	}

	summary.FollowerDelta = s.followerDelta(r, snapshots)

	for _, e := range events {
		if !e.RecordType.IsSignup() || !r.Contains(e.CivilDate) {
			continue
		}
		if s.IsSocial(e.Source) {
			summary.SocialSignups++
		} else {
			summary.PaidSignups++
		}
	}

	for _, rec := range spend {
		if !r.Contains(rec.CivilDate) {
			continue
		}
		switch domain.NormalizePlatform(rec.Platform) {
		case s.followerPlatform:
			summary.FollowerSpend = summary.FollowerSpend.Add(rec.Spend)
		case s.signupPlatform:
			summary.SignupSpend = summary.SignupSpend.Add(rec.Spend)
		}
	}

	if summary.FollowerDelta > 0 {
		summary.CostPerFollower = costPer(summary.FollowerSpend, summary.FollowerDelta)
	}
	summary.CostPerPaidSignup = costPer(summary.SignupSpend, int64(summary.PaidSignups))
	summary.CostPerSocialSignup = costPer(summary.FollowerSpend, int64(summary.SocialSignups))

	return summary
}

func (s *Summarizer) followerDelta(r domain.DateRange, snapshots []domain.FollowerSnapshot) int64 {
	baselineDate, err := civildate.AddDays(r.Start, -1)
	if err != nil {
		return 0
	}

	var baseline, final *domain.FollowerSnapshot
	for i := range snapshots {
		snap := &snapshots[i]
		if domain.NormalizePlatform(snap.Platform) != s.followerPlatform {
			continue
		}
		switch snap.CivilDate {
		case baselineDate:
			baseline = snap
		case r.End:
			final = snap
		}
	}
	if baseline == nil || final == nil {
		return 0
	}
	return final.Count - baseline.Count
}
