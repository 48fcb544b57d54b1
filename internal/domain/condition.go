package domain

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Condition kinds form a closed set. Anything else is rejected at
// validation time instead of silently evaluating to false.
const (
	ConditionContains    = "contains"
	ConditionEquals      = "equals"
	ConditionGreaterThan = "greater_than"
)

// Condition is the predicate half of a learned pattern: a single test
// against one named field of an action context.
type Condition struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Validate checks that the condition uses a known kind and names a field.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionContains, ConditionEquals, ConditionGreaterThan:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConditionKind, c.Kind)
	}
	if c.Field == "" {
		return fmt.Errorf("condition %q: field is required", c.Kind)
	}
	return nil
}

// Equal reports structural equality with another condition: same kind,
// same field, deep value equality. Used to detect a recurring pattern
// proposed again by the inference gateway.
func (c Condition) Equal(other Condition) bool {
	return c.Kind == other.Kind &&
		c.Field == other.Field &&
		reflect.DeepEqual(normalizeValue(c.Value), normalizeValue(other.Value))
}

// Matches evaluates the condition against an action context. A missing
// field or a value that cannot be coerced for the comparison returns an
// error wrapping ErrMissingContextField or ErrValueNotComparable;
// callers treat both as "no match".
func (c Condition) Matches(context map[string]any) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	raw, ok := context[c.Field]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMissingContextField, c.Field)
	}

	switch c.Kind {
	case ConditionContains:
		have := strings.ToLower(stringify(raw))
		want := strings.ToLower(stringify(c.Value))
		return want != "" && strings.Contains(have, want), nil

	case ConditionEquals:
		return stringify(raw) == stringify(c.Value), nil

	case ConditionGreaterThan:
		have, err := toFloat(raw)
		if err != nil {
			return false, err
		}
		want, err := toFloat(c.Value)
		if err != nil {
			return false, err
		}
		return have > want, nil
	}

	// Unreachable: Validate rejects unknown kinds.
	return false, fmt.Errorf("%w: %q", ErrUnknownConditionKind, c.Kind)
}

// normalizeValue folds the numeric types JSON decoding can produce into
// float64 so DeepEqual treats 5 and 5.0 as the same condition value.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrValueNotComparable, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrValueNotComparable, v)
	}
}
