package entities

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
	numericToken = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// CoerceFloat converts v to a float64. It never panics. Strings are stripped
// to digits, '.' and '-' before parsing; when the stripped text is not a
// number on its own ("1.2.3", "5-10") the first numeric token is used.
// The boolean is false when v holds no usable number, including NaN and Inf.
func CoerceFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		return parseNumericString(string(n))
	case string:
		return parseNumericString(n)
	case []byte:
		return parseNumericString(string(n))
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case *int:
		if n == nil {
			return 0, false
		}
		f = float64(*n)
	default:
		return 0, false
	}
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}

// CoerceInt converts v to an int with the same rules as CoerceFloat.
// Fractional values are truncated toward zero; values beyond the int range
// saturate.
func CoerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return clampInt64(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return clampUint64(uint64(n)), true
	case uint:
		return clampUint64(uint64(n)), true
	case uint64:
		return clampUint64(n), true
	case string, json.Number, []byte:
		s := toString(n)
		if i, err := strconv.ParseInt(nonNumeric.ReplaceAllString(s, ""), 10, 64); err == nil {
			return clampInt64(i), true
		}
	}
	f, ok := CoerceFloat(v)
	if !ok {
		return 0, false
	}
	return truncToInt(f), true
}

func parseNumericString(s string) (float64, bool) {
	stripped := nonNumeric.ReplaceAllString(s, "")
	if stripped == "" {
		return 0, false
	}
	if f, ok := parseFloat(stripped); ok {
		return f, true
	}
	token := numericToken.FindString(stripped)
	if token == "" {
		return 0, false
	}
	return parseFloat(token)
}

// parseFloat saturates on overflow so that any digit sequence yields a value.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if math.IsInf(f, -1) {
				return -math.MaxFloat64, true
			}
			if math.IsInf(f, 1) {
				return math.MaxFloat64, true
			}
			// Underflow rounds to zero.
			return f, true
		}
		return 0, false
	}
	return f, isFinite(f)
}

func toString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case json.Number:
		return string(n)
	case []byte:
		return string(n)
	}
	return ""
}

func truncToInt(f float64) int {
	t := math.Trunc(f)
	if t >= math.MaxInt64 {
		return math.MaxInt
	}
	if t <= math.MinInt64 {
		return math.MinInt
	}
	return int(t)
}

func clampInt64(i int64) int {
	if i > math.MaxInt {
		return math.MaxInt
	}
	if i < math.MinInt {
		return math.MinInt
	}
	return int(i)
}

func clampUint64(u uint64) int {
	if u > math.MaxInt {
		return math.MaxInt
	}
	return int(u)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// coerceString returns a trimmed, non-empty string form of v.
func coerceString(v any) (string, bool) {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case json.Number:
		s = string(n)
	case []byte:
		s = string(n)
	case float64:
		if !isFinite(n) {
			return "", false
		}
		s = formatFloat(n)
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
