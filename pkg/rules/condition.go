package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Known condition kinds. Other kinds are carried through untouched.
const (
	KindStringEquals  = "StringEquals"
	KindDateTimeAfter = "DateTimeAfter"
)

const (
	conditionKindKey  = "type"
	conditionValueKey = "value"
)

// Condition is one predicate inside a rule's named condition list. Kind is the
// JSON "type" tag; Fields holds every other member as compacted raw JSON so
// kinds this client does not know about survive a round trip.
type Condition struct {
	Kind   string
	Fields map[string]json.RawMessage
}

func StringEquals(value string) Condition {
	return newValueCondition(KindStringEquals, value)
}

func DateTimeAfter(epochSeconds int64) Condition {
	return newValueCondition(KindDateTimeAfter, epochSeconds)
}

func newValueCondition(kind string, value interface{}) Condition {
	raw, err := json.Marshal(value)
	if err != nil {
		// strings and integers always marshal
		panic(fmt.Sprintf("rules: marshal %s value: %v", kind, err))
	}
	return Condition{
		Kind:   kind,
		Fields: map[string]json.RawMessage{conditionValueKey: raw},
	}
}

// StringValue decodes the "value" member as a string.
func (c Condition) StringValue() (string, bool) {
	var v string
	if !c.decodeValue(&v) {
		return "", false
	}
	return v, true
}

// IntValue decodes the "value" member as an integer.
func (c Condition) IntValue() (int64, bool) {
	var v int64
	if !c.decodeValue(&v) {
		return 0, false
	}
	return v, true
}

func (c Condition) decodeValue(dst interface{}) bool {
	raw, ok := c.Fields[conditionValueKey]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Kind == "" {
		return nil, fmt.Errorf("condition kind is required")
	}

	obj := make(map[string]json.RawMessage, len(c.Fields)+1)
	for k, v := range c.Fields {
		if k == conditionKindKey {
			continue
		}
		obj[k] = v
	}

	kind, err := json.Marshal(c.Kind)
	if err != nil {
		return nil, err
	}
	obj[conditionKindKey] = kind

	return json.Marshal(obj)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("condition must be a JSON object: %w", err)
	}

	kindRaw, ok := raw[conditionKindKey]
	if !ok {
		return fmt.Errorf("condition is missing %q", conditionKindKey)
	}

	var kind string
	if err := json.Unmarshal(kindRaw, &kind); err != nil || kind == "" {
		return fmt.Errorf("condition %q must be a non-empty string", conditionKindKey)
	}
	delete(raw, conditionKindKey)

	var fields map[string]json.RawMessage
	if len(raw) > 0 {
		fields = make(map[string]json.RawMessage, len(raw))
		for k, v := range raw {
			compacted, err := compact(v)
			if err != nil {
				return fmt.Errorf("condition field %q: %w", k, err)
			}
			fields[k] = compacted
		}
	}

	*c = Condition{Kind: kind, Fields: fields}
	return nil
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
