package scpi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// cutset holds the characters trimmed from every response before parsing.
const cutset = " \t\r\n\x00"

var boolTokens = map[string]bool{
	"1":        true,
	"ON":       true,
	"TRUE":     true,
	"ENABLE":   true,
	"ENABLED":  true,
	"0":        false,
	"OFF":      false,
	"FALSE":    false,
	"DISABLE":  false,
	"DISABLED": false,
}

// ParseFloat parses a floating point scalar. Exponent notation and surrounding
// whitespace, CR and NUL padding are accepted.
func ParseFloat(text string) (float64, error) {
	s := strings.Trim(text, cutset)
	if s == "" {
		return 0, fmt.Errorf("%w: empty response where a number was expected", ErrParse)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid float %q", ErrParse, s)
	}

	return f, nil
}

// ParseInt parses an integer scalar.
//
// Instruments occasionally format integers in float notation, e.g. "1.0E+4"; such
// values are accepted when they are integral and fit into int64.
func ParseInt(text string) (int64, error) {
	s := strings.Trim(text, cutset)
	if s == "" {
		return 0, fmt.Errorf("%w: empty response where an integer was expected", ErrParse)
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrParse, s)
	}

	return int64(f), nil
}

// ParseBool parses a boolean scalar from the fixed, case-insensitive vocabulary
// 1/ON/TRUE/ENABLE/ENABLED and 0/OFF/FALSE/DISABLE/DISABLED.
func ParseBool(text string) (bool, error) {
	s := strings.ToUpper(strings.Trim(text, cutset))
	if v, ok := boolTokens[s]; ok {
		return v, nil
	}

	return false, fmt.Errorf("%w: invalid boolean %q", ErrParse, s)
}

// ParseScalar parses text as the scalar variant named by shape and returns the
// corresponding Response.
func ParseScalar(text string, shape Shape) (Response, error) {
	switch shape {
	case ShapeFloat:
		f, err := ParseFloat(text)
		if err != nil {
			return Response{}, err
		}
		return FloatResponse(f), nil
	case ShapeInt:
		i, err := ParseInt(text)
		if err != nil {
			return Response{}, err
		}
		return IntResponse(i), nil
	case ShapeBool:
		b, err := ParseBool(text)
		if err != nil {
			return Response{}, err
		}
		return BoolResponse(b), nil
	default:
		return Response{}, fmt.Errorf("%w: %s is not a scalar shape", ErrParse, shape)
	}
}

// ParseTuple splits a comma separated response into trimmed text fields.
// An empty response yields an empty tuple.
func ParseTuple(text string) []string {
	s := strings.Trim(text, cutset)
	if s == "" {
		return []string{}
	}

	fields := strings.Split(s, ",")
	for i, f := range fields {
		fields[i] = strings.Trim(f, cutset)
	}

	return fields
}

// ParseNumericSequence parses a bulk numeric payload.
//
// Elements are separated by commas or semicolons and/or by blanks, CR, LF and NUL
// bytes. A trailing comma is tolerated; an empty field between two commas is not.
//
// If expected is non-negative the element count must match it exactly, which tells
// a truncated read apart from a genuinely empty result. An empty payload with
// expected 0 (or unknown) yields an empty, non-nil slice.
func ParseNumericSequence(text string, expected int) ([]float64, error) {
	capHint := expected
	if capHint < 0 {
		capHint = strings.Count(text, ",") + strings.Count(text, "\r") + 1
	}
	values := make([]float64, 0, capHint)

	start := -1
	hardSep := false
	for i := 0; i <= len(text); i++ {
		var b byte
		if i < len(text) {
			b = text[i]
		}

		if i < len(text) && !isFieldSeparator(b) {
			if start < 0 {
				start = i
			}
			continue
		}

		if start >= 0 {
			f, err := strconv.ParseFloat(text[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid element %d %q", ErrParse, len(values), text[start:i])
			}
			values = append(values, f)
			start = -1
			hardSep = false
		}

		if b == ',' || b == ';' {
			if hardSep || len(values) == 0 {
				return nil, fmt.Errorf("%w: empty element %d", ErrParse, len(values))
			}
			hardSep = true
		}
	}

	if expected >= 0 && len(values) != expected {
		return nil, fmt.Errorf("%w: expected %d elements, got %d", ErrParse, expected, len(values))
	}

	return values, nil
}
