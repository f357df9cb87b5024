package hiera

import (
	"fmt"
	"regexp"
	"strings"
)

var interpolationPattern = regexp.MustCompile(`%\{\s*([^}]*?)\s*\}`)

// Interpolate replaces %{facts.x.y} (or %{::x} / %{x}) with fact values.
// It returns false when any referenced fact is not set.
func Interpolate(s string, facts map[string]interface{}) (string, bool) {
	ok := true
	out := interpolationPattern.ReplaceAllStringFunc(s, func(m string) string {
		expr := interpolationPattern.FindStringSubmatch(m)[1]
		v, found := factValue(facts, expr)
		if !found {
			ok = false
			return ""
		}
		return v
	})
	return out, ok
}

func factValue(facts map[string]interface{}, expr string) (string, bool) {
	expr = strings.TrimPrefix(expr, "::")
	expr = strings.TrimPrefix(expr, "facts.")
	if expr == "" {
		return "", false
	}

	var cur interface{} = facts
	for _, part := range strings.Split(expr, ".") {
		switch m := cur.(type) {
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return "", false
			}
			cur = v
		case map[interface{}]interface{}:
			v, ok := m[part]
			if !ok {
				return "", false
			}
			cur = v
		default:
			return "", false
		}
	}

	switch v := cur.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case map[string]interface{}, map[interface{}]interface{}, []interface{}:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}
