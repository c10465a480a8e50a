package diag

import (
	"fmt"
	"strings"

	"trainplan/internal/source"
)

// FormatShort renders diagnostics one per line:
//
//	<severity> <CODE> <path>:<line>:<col> <key>: <message>
//
// Order is preserved; callers sort the bag first. Diagnostics without a
// source location print "-" as position.
func FormatShort(items []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	var b strings.Builder
	for i, d := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeShort(&b, d.Severity.Label(), d.Code, position(fs, d.Primary), d.Key, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			b.WriteByte('\n')
			writeShort(&b, "note", d.Code, position(fs, n.Span), d.Key, n.Msg)
		}
	}
	return b.String()
}

func writeShort(b *strings.Builder, sev string, code Code, pos, key, msg string) {
	fmt.Fprintf(b, "%s %s %s ", sev, code.ID(), pos)
	if key != "" {
		b.WriteString(key)
		b.WriteString(": ")
	}
	b.WriteString(sanitizeMessage(msg))
}

func position(fs *source.FileSet, sp source.Span) string {
	if fs == nil {
		return "-"
	}
	return fs.Position(sp)
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
