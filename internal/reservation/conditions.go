package reservation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Conditions are the experiment parameters attached to a reservation. They
// are stored in the event description as a flat JSON object.
type Conditions map[string]string

// ParseConditions decodes an event description. Descriptions that are not a
// JSON object carry no conditions and yield ok=false.
func ParseConditions(description string) (Conditions, bool) {
	description = strings.TrimSpace(description)
	if !strings.HasPrefix(description, "{") {
		return nil, false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(description), &raw); err != nil {
		return nil, false
	}

	conds := make(Conditions, len(raw))
	for k, v := range raw {
		conds[k] = stringify(v)
	}
	return conds, true
}

// Values returns the condition values in header order, empty for missing keys.
func (c Conditions) Values(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		out[i] = c[h]
	}
	return out
}

// Encode renders the conditions as the JSON stored in an event description.
// Empty values are dropped.
func (c Conditions) Encode() (string, error) {
	trimmed := make(map[string]string, len(c))
	for k, v := range c {
		if k == "" || v == "" {
			continue
		}
		trimmed[k] = v
	}
	if len(trimmed) == 0 {
		return "", nil
	}
	b, err := json.Marshal(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(b), nil
}

// ConditionsFromRow pairs header names with row values.
func ConditionsFromRow(headers, values []string) Conditions {
	conds := make(Conditions)
	for i, h := range headers {
		if h == "" || i >= len(values) {
			continue
		}
		conds[h] = values[i]
	}
	return conds
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
