package analytics

import (
	"sort"
	"strings"

	"growthdash/internal/domain"
)

// DirectSource labels events that arrived without a source.
const DirectSource = "Direct"

var sourceSynonyms = map[string]string{
	"fb":        "Facebook",
	"facebook":  "Facebook",
	"meta":      "Facebook",
	"ig":        "Instagram",
	"instagram": "Instagram",
	"tt":        "TikTok",
	"tiktok":    "TikTok",
	"google":    "Google",
	"adwords":   "Google",
	"gads":      "Google",
	"sms":       "SMS",
	"text":      "SMS",
	"email":     "Email",
	"mail":      "Email",
}

// NormalizeSource maps a raw source onto its display label. Unknown sources
// pass through unchanged.
func NormalizeSource(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return DirectSource
	}
	if label, ok := sourceSynonyms[key]; ok {
		return label
	}
	return raw
}

// BreakdownBySource groups events by normalized source, largest first.
func BreakdownBySource(events []domain.GoalEvent) []domain.SourceBreakdownEntry {
	counts := make(map[string]int)
	for _, e := range events {
		counts[NormalizeSource(e.Source)]++
	}

	total := len(events)
	entries := make([]domain.SourceBreakdownEntry, 0, len(counts))
	for source, count := range counts {
		entry := domain.SourceBreakdownEntry{Source: source, Count: count}
		if total > 0 {
			entry.Percentage = float64(count) / float64(total) * 100
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Source < entries[j].Source
	})
	return entries
}

// BreakdownByKind builds a source breakdown for each goal event kind.
func BreakdownByKind(events []domain.GoalEvent) map[domain.RecordType][]domain.SourceBreakdownEntry {
	byKind := make(map[domain.RecordType][]domain.GoalEvent, len(domain.RecordTypes))
	for _, e := range events {
		byKind[e.RecordType] = append(byKind[e.RecordType], e)
	}

	out := make(map[domain.RecordType][]domain.SourceBreakdownEntry, len(domain.RecordTypes))
	for _, kind := range domain.RecordTypes {
		out[kind] = BreakdownBySource(byKind[kind])
	}
	return out
}
