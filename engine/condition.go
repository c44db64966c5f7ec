package engine

import (
	"github.com/jmespath/go-jmespath"
)

// evalCondition evaluates a JMESPath expression against the execution state
// and reports whether the result is truthy.
func evalCondition(expr string, state map[string]any) (bool, error) {
	result, err := jmespath.Search(expr, map[string]any(state))
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// truthy follows JMESPath's notion of false-ness: null, false, empty
// strings, empty collections and zero numbers are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
