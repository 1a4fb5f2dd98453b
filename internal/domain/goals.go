package domain

import "strings"

// RecordType is the kind of row the event store returns for goal events.
type RecordType string

const (
	RecordOrder RecordType = "order"
	RecordUser  RecordType = "user"
	RecordSMS   RecordType = "sms"
)

// RecordTypes lists every goal event kind in display order.
var RecordTypes = []RecordType{RecordOrder, RecordUser, RecordSMS}

// Goal returns the goal kind a record of this type counts towards.
func (r RecordType) Goal() (GoalKind, bool) {
	switch r {
	case RecordOrder:
		return GoalOrders, true
	case RecordUser:
		return GoalUsers, true
	case RecordSMS:
		return GoalSMS, true
	default:
		return "", false
	}
}

// IsSignup reports whether the record represents a person opting in.
func (r RecordType) IsSignup() bool {
	return r == RecordUser || r == RecordSMS
}

// GoalKind is one of the trackable acquisition outcomes.
type GoalKind string

const (
	GoalFollowers GoalKind = "followers"
	GoalSMS       GoalKind = "sms"
	GoalUsers     GoalKind = "users"
	GoalOrders    GoalKind = "orders"
)

// GoalKinds lists every goal in a stable order.
var GoalKinds = []GoalKind{GoalFollowers, GoalSMS, GoalUsers, GoalOrders}

// ParseGoalKind normalizes a stored goal label.
func ParseGoalKind(s string) (GoalKind, bool) {
	switch GoalKind(strings.ToLower(strings.TrimSpace(s))) {
	case GoalFollowers:
		return GoalFollowers, true
	case GoalSMS:
		return GoalSMS, true
	case GoalUsers:
		return GoalUsers, true
	case GoalOrders:
		return GoalOrders, true
	default:
		return "", false
	}
}

// GoalEvent is a single order, user signup or sms signup already tagged with
// the civil date it happened on. Source is empty when the store had none.
type GoalEvent struct {
	RecordType RecordType `json:"record_type"`
	CivilDate  string     `json:"civil_date"`
	Source     string     `json:"source,omitempty"`
}

// FollowerSnapshot is the cumulative follower count at the end of a civil day.
type FollowerSnapshot struct {
	Platform  string `json:"platform"`
	CivilDate string `json:"civil_date"`
	Count     int64  `json:"count"`
}

// CampaignGoalMapping ties an ad campaign to the goals its spend serves.
type CampaignGoalMapping struct {
	CampaignID   string     `json:"campaign_id"`
	CampaignName string     `json:"campaign_name"`
	Platform     string     `json:"platform"`
	Goals        []GoalKind `json:"goals"`
}

// UniqueGoals returns the mapping's goals without duplicates or unknown kinds,
// in first-seen order.
func (m CampaignGoalMapping) UniqueGoals() []GoalKind {
	seen := make(map[GoalKind]struct{}, len(m.Goals))
	out := make([]GoalKind, 0, len(m.Goals))
	for _, g := range m.Goals {
		kind, ok := ParseGoalKind(string(g))
		if !ok {
			continue
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out
}
