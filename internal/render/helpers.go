package render

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/aymerick/raymond"
)

// Helpers returns a fresh copy of the template helper set. Every helper has
// fixed arity and a single return value so the same map serves both engines.
func Helpers() map[string]any {
	return map[string]any{
		"eq":           Eq,
		"ne":           Ne,
		"neq":          Ne,
		"gt":           func(a, b any) bool { return compare(a, b, func(x, y float64) bool { return x > y }) },
		"lt":           func(a, b any) bool { return compare(a, b, func(x, y float64) bool { return x < y }) },
		"gte":          func(a, b any) bool { return compare(a, b, func(x, y float64) bool { return x >= y }) },
		"lte":          func(a, b any) bool { return compare(a, b, func(x, y float64) bool { return x <= y }) },
		"and":          And,
		"or":           Or,
		"not":          func(a any) bool { return !Truthy(a) },
		"add":          func(a, b any) float64 { return coerce(a) + coerce(b) },
		"sub":          func(a, b any) float64 { return coerce(a) - coerce(b) },
		"default":      Default,
		"includes":     Includes,
		"formatDelta":  FormatDelta,
		"formatWeight": FormatWeight,
	}
}

// Truthy follows Handlebars #if semantics: empty lists and zero are false.
func Truthy(v any) bool {
	return raymond.IsTrue(v)
}

// Eq compares numbers by value and everything else structurally.
func Eq(a, b any) bool {
	x, okA := number(a)
	y, okB := number(b)
	if okA && okB {
		return x == y
	}
	return reflect.DeepEqual(a, b)
}

func Ne(a, b any) bool { return !Eq(a, b) }

// And returns a when it is falsy, otherwise b.
func And(a, b any) any {
	if !Truthy(a) {
		return a
	}
	return b
}

// Or returns a when it is truthy, otherwise b.
func Or(a, b any) any {
	if Truthy(a) {
		return a
	}
	return b
}

// Default substitutes fallback for nil and empty strings.
func Default(v, fallback any) any {
	if v == nil {
		return fallback
	}
	if s, ok := v.(string); ok && s == "" {
		return fallback
	}
	return v
}

// Includes reports whether list (a slice, array or string) contains item.
func Includes(list, item any) bool {
	if list == nil {
		return false
	}
	if s, ok := list.(string); ok {
		sub, ok := item.(string)
		return ok && strings.Contains(s, sub)
	}

	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if Eq(rv.Index(i).Interface(), item) {
			return true
		}
	}
	return false
}

// FormatWeight renders kilograms with at most one decimal, "--" when absent.
// 70 -> "70", 67.25 -> "67.3".
func FormatWeight(v any) string {
	f, ok := number(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			f, ok = parseNumber(s)
		}
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "--"
	}

	r := math.Round(f*10) / 10
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// FormatDelta converts a kilogram delta to signed grams.
// 0.5 -> "+500", -0.3 -> "-300", 0 -> "0", nil -> "--".
func FormatDelta(v any) string {
	f, ok := number(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			f, ok = parseNumber(s)
		}
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "--"
	}

	g := int64(math.Round(f * 1000))
	switch {
	case g > 0:
		return "+" + strconv.FormatInt(g, 10)
	case g < 0:
		return strconv.FormatInt(g, 10)
	default:
		return "0"
	}
}

func compare(a, b any, op func(x, y float64) bool) bool {
	x, okA := lenient(a)
	y, okB := lenient(b)
	if !okA || !okB {
		return false
	}
	return op(x, y)
}

// coerce is lenient with nil counting as zero, for arithmetic.
func coerce(v any) float64 {
	f, _ := lenient(v)
	return f
}

// lenient accepts numbers and numeric strings.
func lenient(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		return parseNumber(s)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// number accepts Go numeric kinds and json.Number only.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
