package core

// convert.go provides cell conversion between text and typed values.
//
// Text formats carry no type information, so decoding infers a type per
// column: a column becomes numeric only when every non-empty cell is a
// number whose canonical rendering is exactly the original text. This keeps
// values such as "007", "1.50" or "+3" as strings, which makes the text
// round trip byte-exact for anything a decoder produced.

import (
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// numericRegex validates that a string is a plain decimal number.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// inferColumn converts raw text cells to typed values. Cells flagged as
// absent become nil. Returns the values, all of type string, int64 or
// float64 (or nil).
func inferColumn(cells []string, absent []bool) []Value {
	allInt, allFloat := true, true
	for i, s := range cells {
		if absent[i] {
			continue
		}
		if allInt {
			if _, ok := canonicalInt(s); !ok {
				allInt = false
			}
		}
		if allFloat {
			if _, ok := canonicalFloat(s); !ok {
				allFloat = false
			}
		}
		if !allInt && !allFloat {
			break
		}
	}

	out := make([]Value, len(cells))
	for i, s := range cells {
		switch {
		case absent[i]:
			out[i] = nil
		case allInt:
			n, _ := canonicalInt(s)
			out[i] = n
		case allFloat:
			f, _ := canonicalFloat(s)
			out[i] = f
		default:
			out[i] = s
		}
	}
	return out
}

// canonicalInt parses s as an int64 only if formatting the result gives s back.
func canonicalInt(s string) (int64, bool) {
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}

// canonicalFloat parses s as a float64 only if formatting the result gives s back.
func canonicalFloat(s string) (float64, bool) {
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || formatFloat(f) != s {
		return 0, false
	}
	return f, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatText renders a cell for a text format. Nil and non-finite floats
// render as the empty string.
func formatText(v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", nil
		}
		return formatFloat(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}

// checkValue reports an error if v is not one of the allowed cell types.
func checkValue(v Value) error {
	switch v.(type) {
	case nil, string, int64, uint64, float64, bool, []byte, time.Time:
		return nil
	default:
		return fmt.Errorf("unsupported cell type %T", v)
	}
}
