package main

import (
	"fmt"
	"strconv"
	"strings"

	"trainplan/internal/lexer"
	"trainplan/internal/pipeline"
	"trainplan/internal/token"
)

// overrideSource is the name of the fragment built from --set flags.
const overrideSource = "<set>"

// overridesFragment turns key=value pairs into one fragment text. Values
// that are not literals of the fragment format are quoted as strings.
func overridesFragment(pairs []string) (pipeline.Source, error) {
	var b strings.Builder
	b.WriteString("{\n")
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return pipeline.Source{}, fmt.Errorf("invalid --set %q (expected key=value)", p)
		}
		fmt.Fprintf(&b, "  %s: %s,\n", strconv.Quote(key), literal(strings.TrimSpace(val)))
	}
	b.WriteString("}\n")
	return pipeline.Source{Name: overrideSource, Content: []byte(b.String())}, nil
}

// literal keeps numbers, booleans and null as the lexer reads them; inf,
// NaN and other words become strings.
func literal(v string) string {
	if v == "" {
		return `""`
	}
	if lexer.ScalarKind(v) != token.Invalid {
		return v
	}
	switch v[0] {
	case '"', '[', '{':
		return v
	}
	return strconv.Quote(v)
}
