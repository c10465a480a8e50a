// Package rules holds the cross-field consistency checks. Each rule is an
// independent predicate over a schema-valid configuration; all registered
// rules run on every request.
package rules

import (
	"fmt"
	"slices"

	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/topology"
)

// Rule is one cross-field check.
type Rule interface {
	Name() string
	Check(ctx *Context) []diag.Diagnostic
}

type funcRule struct {
	name  string
	check func(*Context) []diag.Diagnostic
}

func (r funcRule) Name() string { return r.name }
func (r funcRule) Check(ctx *Context) []diag.Diagnostic { return r.check(ctx) }

// New wraps a function as a Rule.
func New(name string, check func(*Context) []diag.Diagnostic) Rule {
	return funcRule{name: name, check: check}
}

// Registry is an ordered set of uniquely named rules. It must not be
// modified once requests are being checked.
type Registry struct {
	rules []Rule
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds rules in order. Names must be unique.
func (r *Registry) Register(rules ...Rule) error {
	for _, rule := range rules {
		if _, dup := r.names[rule.Name()]; dup {
			return fmt.Errorf("rule %q is already registered", rule.Name())
		}
		r.names[rule.Name()] = struct{}{}
		r.rules = append(r.rules, rule)
	}
	return nil
}

// Rules returns the registered rules in order.
func (r *Registry) Rules() []Rule {
	return slices.Clone(r.rules)
}

func (r *Registry) Len() int { return len(r.rules) }

// Check runs every rule against cfg and reports the findings. ok is false
// when any error was reported.
func (r *Registry) Check(cfg *merge.Config, topo topology.Topology, rep diag.Reporter) (ok bool) {
	ctx := NewContext(cfg, topo)
	ok = true
	for _, rule := range r.rules {
		for _, d := range rule.Check(ctx) {
			if d.Rule == "" {
				d.Rule = rule.Name()
			}
			if d.Severity >= diag.SevError {
				ok = false
			}
			if rep != nil {
				rep.Report(d)
			}
		}
	}
	return ok
}

// Builtin returns a registry with every builtin rule.
func Builtin() *Registry {
	r := NewRegistry()
	if err := r.Register(builtinRules()...); err != nil {
		panic(err)
	}
	return r
}
