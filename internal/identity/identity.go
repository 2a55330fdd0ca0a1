// Package identity implements the change detection shared by cells and
// stores: a write counts as a change by identity of the assignment, not
// deep equality.
package identity

import "math"

// Equal reports whether assigning next over prev counts as "no change".
// Comparable primitives compare by value; assigning any non-primitive
// always counts as a change. NaN is handled so that NaN over NaN is not
// a change while NaN against a number is.
func Equal[T any](prev, next T) bool {
	switch a := any(prev).(type) {
	case int:
		b, ok := any(next).(int)
		return ok && a == b
	case int8:
		b, ok := any(next).(int8)
		return ok && a == b
	case int16:
		b, ok := any(next).(int16)
		return ok && a == b
	case int32:
		b, ok := any(next).(int32)
		return ok && a == b
	case int64:
		b, ok := any(next).(int64)
		return ok && a == b
	case uint:
		b, ok := any(next).(uint)
		return ok && a == b
	case uint8:
		b, ok := any(next).(uint8)
		return ok && a == b
	case uint16:
		b, ok := any(next).(uint16)
		return ok && a == b
	case uint32:
		b, ok := any(next).(uint32)
		return ok && a == b
	case uint64:
		b, ok := any(next).(uint64)
		return ok && a == b
	case uintptr:
		b, ok := any(next).(uintptr)
		return ok && a == b
	case float32:
		b, ok := any(next).(float32)
		if !ok {
			return false
		}
		if math.IsNaN(float64(a)) && math.IsNaN(float64(b)) {
			return true
		}
		return a == b
	case float64:
		b, ok := any(next).(float64)
		if !ok {
			return false
		}
		if math.IsNaN(a) && math.IsNaN(b) {
			return true
		}
		return a == b
	case string:
		b, ok := any(next).(string)
		return ok && a == b
	case bool:
		b, ok := any(next).(bool)
		return ok && a == b
	default:
		// Non-primitive assignment always counts as a change.
		return false
	}
}
