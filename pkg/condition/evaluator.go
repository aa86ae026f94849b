package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve walks a nested map by splitting path on dots.
// It returns nil as soon as any intermediate segment is missing or
// not a map, so callers can treat nil as "undefined".
func Resolve(root map[string]interface{}, path string) interface{} {
	if root == nil || path == "" {
		return nil
	}

	var current interface{} = root
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		value, exists := node[segment]
		if !exists || value == nil {
			return nil
		}
		current = value
	}
	return current
}

// Evaluate applies operator to (fieldValue, target). It is a pure
// function: no state, no errors. Unknown operators evaluate to false.
func Evaluate(fieldValue interface{}, operator string, target interface{}) bool {
	switch operator {
	case "equals":
		return stringify(fieldValue) == stringify(target)
	case "notEquals":
		return stringify(fieldValue) != stringify(target)
	case "contains":
		return strings.Contains(stringify(fieldValue), stringify(target))
	case "notContains":
		return !strings.Contains(stringify(fieldValue), stringify(target))
	case "greaterThan":
		a, okA := toFloat(fieldValue)
		b, okB := toFloat(target)
		return okA && okB && a > b
	case "lessThan":
		a, okA := toFloat(fieldValue)
		b, okB := toFloat(target)
		return okA && okB && a < b
	case "exists":
		return fieldValue != nil
	case "notExists":
		return fieldValue == nil
	default:
		return false
	}
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
