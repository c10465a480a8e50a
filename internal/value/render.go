package value

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f in its shortest round-trip form, always with a
// '.' or an exponent so the text reads back as a float.
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Render returns a short single-line rendering used in diagnostics.
func (v Value) Render() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return FormatFloat(v.f)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for i, it := range v.list {
			if i == 4 {
				parts = append(parts, "...")
				break
			}
			parts = append(parts, it.Render())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindBlock:
		return "{...}"
	}
	return "?"
}

// ToAny converts v into plain Go values (map[string]any, []any, int64,
// float64, string, bool, nil) for encoders that need them.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.ToAny()
		}
		return out
	case KindBlock:
		out := make(map[string]any, v.block.Len())
		for _, k := range v.block.Keys() {
			out[k] = v.block.vals[k].ToAny()
		}
		return out
	}
	return nil
}
