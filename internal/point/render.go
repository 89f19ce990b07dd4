package point

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Render converts a packet value to its field text. Sequences are joined
// with commas, enumerations use their symbolic name and floats always
// carry a decimal point or exponent (1.0, 2.5, 1e-05).
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = FormatFloat(f)
		}
		return strings.Join(parts, ",")
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Render(item)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return val.String()
	case float64:
		return FormatFloat(val)
	case float32:
		return FormatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(val)
	}
}

// FormatFloat renders f with the shortest exact representation, switching
// to exponent form below 1e-4 and from 1e16 on.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
