// Package provenance tracks which source contributed each configuration
// value. It is a parallel map keyed by dotted path so the value tree stays
// free of bookkeeping.
package provenance

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"trainplan/internal/source"
)

// Kind says where a value came from.
type Kind uint8

const (
	FromFragment Kind = iota
	FromDefault
	FromDerived
)

func (k Kind) String() string {
	switch k {
	case FromDefault:
		return "default"
	case FromDerived:
		return "derived"
	default:
		return "fragment"
	}
}

// Origin is one definition of a key.
type Origin struct {
	Kind    Kind
	Source  string      // fragment name; empty for defaults and derived values
	Rank    int         // merge precedence of the fragment, 0 = lowest
	Span    source.Span // the value
	KeySpan source.Span // the key that introduced it
	Value   string      // rendered value as defined here
	Note    string      // e.g. "replaced block" or the derivation formula
}

// Describe renders the origin for provenance reports.
func (o Origin) Describe(fs *source.FileSet) string {
	switch o.Kind {
	case FromDefault:
		return "<default>"
	case FromDerived:
		if o.Note != "" {
			return "<derived: " + o.Note + ">"
		}
		return "<derived>"
	}
	if fs != nil && o.Span.Valid() {
		return fs.Position(o.Span)
	}
	if o.Source != "" {
		return o.Source
	}
	return "-"
}

// Map is an immutable path -> origin chain mapping. The last element of a
// chain is the winning definition; earlier ones were overridden.
type Map struct {
	chains map[string][]Origin
}

// Empty is a Map without entries.
var Empty = &Map{chains: map[string][]Origin{}}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.chains)
}

// Chain returns a copy of the chain for path, oldest first.
func (m *Map) Chain(path string) []Origin {
	if m == nil {
		return nil
	}
	return slices.Clone(m.chains[path])
}

// Winner returns the origin that supplied the current value of path.
func (m *Map) Winner(path string) (Origin, bool) {
	if m == nil {
		return Origin{}, false
	}
	ch := m.chains[path]
	if len(ch) == 0 {
		return Origin{}, false
	}
	return ch[len(ch)-1], true
}

// Span returns the winning span for path, or source.NoSpan.
func (m *Map) Span(path string) source.Span {
	if o, ok := m.Winner(path); ok {
		return o.Span
	}
	return source.NoSpan
}

// Paths returns every tracked path, sorted.
func (m *Map) Paths() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.chains))
	for p := range m.chains {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Under returns the tracked paths strictly below prefix, sorted.
func (m *Map) Under(prefix string) []string {
	if m == nil {
		return nil
	}
	dot, idx := prefix+".", prefix+"["
	var out []string
	for p := range m.chains {
		if strings.HasPrefix(p, dot) || strings.HasPrefix(p, idx) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Report renders "path  origin" lines for every path, sorted.
func (m *Map) Report(fs *source.FileSet) string {
	var b strings.Builder
	for _, p := range m.Paths() {
		o, _ := m.Winner(p)
		fmt.Fprintf(&b, "%s\t%s\n", p, o.Describe(fs))
	}
	return b.String()
}

// Builder accumulates origins and produces a Map. The base map passed to
// NewBuilder is never modified.
type Builder struct {
	chains map[string][]Origin
}

func NewBuilder(base *Map) *Builder {
	b := &Builder{chains: make(map[string][]Origin, base.Len()+8)}
	if base != nil {
		for k, v := range base.chains {
			b.chains[k] = v
		}
	}
	return b
}

// Append records o as the newest definition of path.
func (b *Builder) Append(path string, o Origin) {
	prev := b.chains[path]
	next := make([]Origin, len(prev), len(prev)+1)
	copy(next, prev)
	b.chains[path] = append(next, o)
}

// AppendChain records every origin of chain on top of path's chain.
func (b *Builder) AppendChain(path string, chain []Origin) {
	if len(chain) == 0 {
		return
	}
	prev := b.chains[path]
	next := make([]Origin, 0, len(prev)+len(chain))
	next = append(next, prev...)
	b.chains[path] = append(next, chain...)
}

// Has reports whether path has any origin.
func (b *Builder) Has(path string) bool {
	return len(b.chains[path]) > 0
}

// DropChildren forgets every path strictly below prefix, including list
// elements such as prefix[0].
func (b *Builder) DropChildren(prefix string) {
	dot, idx := prefix+".", prefix+"["
	for k := range b.chains {
		if strings.HasPrefix(k, dot) || strings.HasPrefix(k, idx) {
			delete(b.chains, k)
		}
	}
}

// Delete forgets path and everything below it.
func (b *Builder) Delete(path string) {
	delete(b.chains, path)
	b.DropChildren(path)
}

// Rename moves the chains of from and everything below it to to.
func (b *Builder) Rename(from, to string) {
	if from == to {
		return
	}
	dot, idx := from+".", from+"["
	moved := make(map[string][]Origin)
	for k, v := range b.chains {
		switch {
		case k == from:
			moved[to] = v
		case strings.HasPrefix(k, dot), strings.HasPrefix(k, idx):
			moved[to+k[len(from):]] = v
		default:
			continue
		}
		delete(b.chains, k)
	}
	for k, v := range moved {
		b.AppendChain(k, v)
	}
}

func (b *Builder) Build() *Map {
	out := make(map[string][]Origin, len(b.chains))
	for k, v := range b.chains {
		out[k] = v
	}
	return &Map{chains: out}
}
