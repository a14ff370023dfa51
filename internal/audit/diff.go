package audit

import "reflect"

// Change is a single before/after pair.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff returns the keys whose values differ between before and after.
func Diff(before, after map[string]any) map[string]Change {
	out := make(map[string]Change)
	for key, prev := range before {
		next, ok := after[key]
		if !ok {
			out[key] = Change{From: prev, To: nil}
			continue
		}
		if !reflect.DeepEqual(prev, next) {
			out[key] = Change{From: prev, To: next}
		}
	}
	for key, next := range after {
		if _, ok := before[key]; !ok {
			out[key] = Change{From: nil, To: next}
		}
	}
	return out
}

// StatusChanges is the STATUS_CHANGE payload: prior and new statuses.
type StatusChanges struct {
	From any `json:"from"`
	To   any `json:"to"`
}
