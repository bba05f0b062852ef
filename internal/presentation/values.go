// Package presentation maps upstream payloads into template-ready views.
//
// Transforms are pure: they read the decoded request body and never touch
// the network, storage or the clock.
package presentation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"cardrender/internal/render"
)

// Delta classes used for grid cells and player rows.
const (
	ClassLoss   = "loss"
	ClassGain   = "gain"
	ClassSame   = "same"
	ClassMissed = "missed"
	ClassEmpty  = "empty"
)

// path walks nested maps by key.
func path(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[k]
	}
	return cur
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// num returns nil for absent, null and non-numeric values. A reported zero
// is a real zero.
func num(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return nil
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = x
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func boolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		return s == "1" || s == "true" || s == "yes"
	case float64:
		return b == 1
	}
	return false
}

func list(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// first returns the first non-nil value among the given lookups.
func first(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// weightText is the weight in kg with at most one decimal, "--" when absent.
func weightText(v *float64) string {
	if v == nil {
		return render.FormatWeight(nil)
	}
	return render.FormatWeight(*v)
}

// kgDeltaText is a signed kilogram delta, e.g. "+0.5 kg", "-3 kg", "0 kg".
func kgDeltaText(v *float64) string {
	if v == nil {
		return "--"
	}
	s := render.FormatWeight(*v)
	if s != "0" && *v > 0 {
		s = "+" + s
	}
	return s + " kg"
}

// gramDeltaText is a signed gram delta, e.g. "+500", "-300", "0".
func gramDeltaText(v *float64) string {
	if v == nil {
		return render.FormatDelta(nil)
	}
	return render.FormatDelta(*v)
}

func deltaClass(v *float64) string {
	switch {
	case v == nil:
		return ClassEmpty
	case math.Round(*v*1000) < 0:
		return ClassLoss
	case math.Round(*v*1000) > 0:
		return ClassGain
	default:
		return ClassSame
	}
}

// ToMap converts a view struct into the generic map the template engines
// walk, keyed by its json tags.
func ToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// WithView returns a shallow copy of body with view stored under "view".
// The caller's fields stay at the top level for templates that read them directly.
func WithView(body map[string]any, view any) (map[string]any, error) {
	vm, err := ToMap(view)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		out[k] = v
	}
	out["view"] = vm
	return out, nil
}
