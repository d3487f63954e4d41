package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ToInt64 converts the numeric shapes backends hand back (float64 from JSON,
// json.Number, ints, numeric strings) to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(math.Round(n)), true
	case float32:
		return int64(math.Round(float64(n))), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(math.Round(f)), true
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// SameValue compares two attribute values after normalizing numbers.
func SameValue(a, b any) bool {
	if ai, ok := numeric(a); ok {
		bi, ok := numeric(b)
		return ok && ai == bi
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func numeric(v any) (int64, bool) {
	switch v.(type) {
	case int, int32, int64, float32, float64, json.Number:
		return ToInt64(v)
	}
	return 0, false
}
