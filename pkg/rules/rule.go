package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Registered JWT claim names used as condition list keys.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpires   = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimJWTID     = "jti"
)

const (
	fieldRuleID      = "ruleId"
	fieldRuleExpires = "ruleExpires"
)

// Rule marks every JWT matching all of its condition lists as revoked until
// Expires, after which the manager may purge it.
//
// ID is empty until the manager assigns one. Conditions are keyed by claim
// name and are flattened into the rule's JSON object. Extra keeps any
// non-list members the manager sends so they are written back unchanged.
type Rule struct {
	ID         string
	Expires    int64
	Conditions map[string][]Condition
	Extra      map[string]json.RawMessage
}

func (r Rule) HasID() bool {
	return r.ID != ""
}

func (r Rule) WithID(id string) Rule {
	r.ID = id
	return r
}

func (r Rule) WithoutID() Rule {
	r.ID = ""
	return r
}

// ConditionNames returns the condition list keys in sorted order.
func (r Rule) ConditionNames() []string {
	names := make([]string, 0, len(r.Conditions))
	for name := range r.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports structural equality, treating nil and empty collections alike.
func (r Rule) Equal(other Rule) bool {
	if r.ID != other.ID || r.Expires != other.Expires {
		return false
	}
	if len(r.Conditions) != len(other.Conditions) || len(r.Extra) != len(other.Extra) {
		return false
	}
	for name, conds := range r.Conditions {
		otherConds, ok := other.Conditions[name]
		if !ok || len(conds) != len(otherConds) {
			return false
		}
		for i := range conds {
			if !conditionsEqual(conds[i], otherConds[i]) {
				return false
			}
		}
	}
	for k, v := range r.Extra {
		if string(other.Extra[k]) != string(v) {
			return false
		}
	}
	return true
}

func conditionsEqual(a, b Condition) bool {
	if a.Kind != b.Kind || len(a.Fields) != len(b.Fields) {
		return false
	}
	for k, v := range a.Fields {
		w, ok := b.Fields[k]
		if !ok {
			return false
		}
		var av, bv interface{}
		if json.Unmarshal(v, &av) != nil || json.Unmarshal(w, &bv) != nil {
			return string(v) == string(w)
		}
		if !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

func (r Rule) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, len(r.Conditions)+len(r.Extra)+2)

	for k, v := range r.Extra {
		obj[k] = v
	}
	for name, conds := range r.Conditions {
		if conds == nil {
			conds = []Condition{}
		}
		obj[name] = conds
	}

	if r.ID != "" {
		obj[fieldRuleID] = r.ID
	} else {
		delete(obj, fieldRuleID)
	}
	obj[fieldRuleExpires] = r.Expires

	return json.Marshal(obj)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rule must be a JSON object: %w", err)
	}

	var rule Rule

	expiresRaw, ok := raw[fieldRuleExpires]
	if !ok || isJSONNull(expiresRaw) {
		return fmt.Errorf("rule is missing %q", fieldRuleExpires)
	}
	if err := json.Unmarshal(expiresRaw, &rule.Expires); err != nil {
		return fmt.Errorf("rule %q must be an integer: %w", fieldRuleExpires, err)
	}
	delete(raw, fieldRuleExpires)

	if idRaw, ok := raw[fieldRuleID]; ok {
		var id *string
		if err := json.Unmarshal(idRaw, &id); err != nil {
			return fmt.Errorf("rule %q must be a string: %w", fieldRuleID, err)
		}
		if id != nil {
			rule.ID = *id
		}
		delete(raw, fieldRuleID)
	}

	for name, value := range raw {
		if isJSONNull(value) {
			continue
		}
		if !isJSONArray(value) {
			compacted, err := compact(value)
			if err != nil {
				return fmt.Errorf("rule field %q: %w", name, err)
			}
			if rule.Extra == nil {
				rule.Extra = make(map[string]json.RawMessage)
			}
			rule.Extra[name] = compacted
			continue
		}

		var conds []Condition
		if err := json.Unmarshal(value, &conds); err != nil {
			return fmt.Errorf("rule conditions %q: %w", name, err)
		}
		if rule.Conditions == nil {
			rule.Conditions = make(map[string][]Condition)
		}
		rule.Conditions[name] = conds
	}

	*r = rule
	return nil
}

func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func isJSONNull(raw json.RawMessage) bool {
	var v interface{}
	return json.Unmarshal(raw, &v) == nil && v == nil
}
