package rules

import (
	"fmt"
	"strings"

	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/source"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

// Context gives rules typed read access to the configuration.
type Context struct {
	cfg      *merge.Config
	Topology topology.Topology
}

func NewContext(cfg *merge.Config, topo topology.Topology) *Context {
	if cfg == nil {
		cfg = merge.Empty()
	}
	return &Context{cfg: cfg, Topology: topo}
}

func (c *Context) Value(path string) (value.Value, bool) {
	v, ok := c.cfg.Root.Lookup(value.ParsePath(path))
	if !ok || v.IsNull() {
		return value.Null(), false
	}
	return v, true
}

func (c *Context) Has(path string) bool {
	_, ok := c.Value(path)
	return ok
}

func (c *Context) Int(path string) (int64, bool) {
	v, ok := c.Value(path)
	if !ok {
		return 0, false
	}
	return v.IntVal()
}

func (c *Context) Float(path string) (float64, bool) {
	v, ok := c.Value(path)
	if !ok {
		return 0, false
	}
	return v.FloatVal()
}

// Bool returns false for absent keys.
func (c *Context) Bool(path string) bool {
	v, ok := c.Value(path)
	if !ok {
		return false
	}
	b, _ := v.BoolVal()
	return b
}

func (c *Context) String(path string) (string, bool) {
	v, ok := c.Value(path)
	if !ok {
		return "", false
	}
	return v.StringVal()
}

// Span is where the winning value of path was written.
func (c *Context) Span(path string) source.Span {
	return c.cfg.Origins.Span(path)
}

// Render formats the value of path for messages.
func (c *Context) Render(path string) string {
	v, ok := c.Value(path)
	if !ok {
		return "<unset>"
	}
	return v.Render()
}

// DataParallel is the degree implied by the topology and the parallelism
// keys; ok is false when they do not fit.
func (c *Context) DataParallel() (int64, bool) {
	pipe, _ := c.Int("pipe-parallel-size")
	mp, ok := c.Int("model-parallel-size")
	if !ok {
		mp = 1
	}
	return c.Topology.DataParallel(pipe, mp)
}

// Violation builds an error anchored at key. Every other key becomes a note
// so that all fields of the relation are named with their values.
func (c *Context) Violation(code diag.Code, key, msg string, others ...string) diag.Diagnostic {
	return c.diagnostic(diag.SevError, code, key, msg, others)
}

// Advice is the warning form of Violation.
func (c *Context) Advice(code diag.Code, key, msg string, others ...string) diag.Diagnostic {
	return c.diagnostic(diag.SevWarning, code, key, msg, others)
}

func (c *Context) diagnostic(sev diag.Severity, code diag.Code, key, msg string, others []string) diag.Diagnostic {
	d := diag.New(sev, code, c.Span(key), msg).
		WithKey(key).
		WithValue(c.Render(key))
	for _, o := range others {
		d = d.WithNote(c.Span(o), fmt.Sprintf("%s = %s", o, c.Render(o)))
	}
	return d
}

// named renders "key (value)" for messages.
func (c *Context) named(keys ...string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q (%s)", k, c.Render(k))
	}
	return strings.Join(parts, " and ")
}
