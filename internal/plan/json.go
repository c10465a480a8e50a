package plan

import (
	"strconv"
	"strings"

	"trainplan/internal/value"
)

// CanonicalJSON renders b with sorted keys, two-space indentation, integers
// in decimal and floats in shortest round-trip form that always contains
// '.' or an exponent. Equal trees always produce identical bytes.
func CanonicalJSON(b *value.Block) []byte {
	var sb strings.Builder
	writeJSON(&sb, value.FromBlock(b), 0)
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func writeJSON(sb *strings.Builder, v value.Value, depth int) {
	switch v.Kind() {
	case value.KindNull:
		sb.WriteString("null")
	case value.KindBool:
		b, _ := v.BoolVal()
		sb.WriteString(strconv.FormatBool(b))
	case value.KindInt:
		n, _ := v.IntVal()
		sb.WriteString(strconv.FormatInt(n, 10))
	case value.KindFloat:
		f, _ := v.FloatVal()
		sb.WriteString(value.FormatFloat(f))
	case value.KindString:
		s, _ := v.StringVal()
		writeJSONString(sb, s)
	case value.KindList:
		items := v.Items()
		if len(items) == 0 {
			sb.WriteString("[]")
			return
		}
		sb.WriteString("[\n")
		for i, it := range items {
			indent(sb, depth+1)
			writeJSON(sb, it, depth+1)
			if i < len(items)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		indent(sb, depth)
		sb.WriteByte(']')
	case value.KindBlock:
		blk := v.Block()
		keys := blk.SortedKeys()
		if len(keys) == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("{\n")
		for i, k := range keys {
			child, _ := blk.Get(k)
			indent(sb, depth+1)
			writeJSONString(sb, k)
			sb.WriteString(": ")
			writeJSON(sb, child, depth+1)
			if i < len(keys)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		indent(sb, depth)
		sb.WriteByte('}')
	}
}

func indent(sb *strings.Builder, depth int) {
	for range depth {
		sb.WriteString("  ")
	}
}

const hexDigits = "0123456789abcdef"

// writeJSONString escapes per RFC 8259 without HTML escaping.
func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[r>>4])
				sb.WriteByte(hexDigits[r&0xf])
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}
