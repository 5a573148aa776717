package rules

import (
	"encoding/json"
	"fmt"
)

// RuleSet is the manager's snapshot of every active rule, computed at
// Timestamp (epoch seconds).
type RuleSet struct {
	Rules     []Rule `json:"rules"`
	Timestamp int64  `json:"timestamp"`
}

// Contains reports whether a structurally equal rule is part of the set.
func (s RuleSet) Contains(rule Rule) bool {
	for _, r := range s.Rules {
		if r.Equal(rule) {
			return true
		}
	}
	return false
}

// Find returns the rule with the given id.
func (s RuleSet) Find(id string) (Rule, bool) {
	for _, r := range s.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

func (s RuleSet) Equal(other RuleSet) bool {
	if s.Timestamp != other.Timestamp || len(s.Rules) != len(other.Rules) {
		return false
	}
	for i := range s.Rules {
		if !s.Rules[i].Equal(other.Rules[i]) {
			return false
		}
	}
	return true
}

// UnmarshalJSON requires both members; a rule set without a timestamp
// cannot be ordered against another one.
func (s *RuleSet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Rules     *[]Rule `json:"rules"`
		Timestamp *int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rule set: %w", err)
	}
	if raw.Rules == nil {
		return fmt.Errorf("rule set is missing %q", "rules")
	}
	if raw.Timestamp == nil {
		return fmt.Errorf("rule set is missing %q", "timestamp")
	}
	*s = RuleSet{Rules: *raw.Rules, Timestamp: *raw.Timestamp}
	return nil
}
