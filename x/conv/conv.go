// Package conv coerces loosely typed config values (as produced by YAML or
// JSON decoders) into Go scalars.
package conv

import (
	"math"
	"strconv"
	"strings"
)

// Int accepts any Go integer kind, floats with no fractional part, and
// strings holding a decimal or 0x-prefixed integer. Values outside the
// platform int range are rejected, as are bools.
func Int(v any) (int, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return 0, false
		}
		return int64Int(n)
	}
	return number(v)
}

// number is Int without the string form.
func number(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int64Int(x)
	case uint:
		return uint64Int(uint64(x))
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return uint64Int(uint64(x))
	case uint64:
		return uint64Int(x)
	case float32:
		return floatInt(float64(x))
	case float64:
		return floatInt(x)
	default:
		return 0, false
	}
}

func int64Int(n int64) (int, bool) {
	if n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func uint64Int(n uint64) (int, bool) {
	if n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func floatInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// MaxInt is not exactly representable; 2^63 (or 2^31) rounds up to it.
	if f < math.MinInt || f >= -math.MinInt {
		return 0, false
	}
	return int(f), true
}

// Float accepts any numeric kind. Strings are rejected.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := number(v); ok {
		return float64(i), true
	}
	return 0, false
}

// TypeName is a short, user-facing name for the dynamic type of v.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	default:
		return "value"
	}
}
