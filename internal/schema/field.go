package schema

import (
	"trainplan/internal/value"
)

// FieldSpec describes one configuration key.
type FieldSpec struct {
	Key  string
	Type Type
	Doc  string

	Default    value.Value
	HasDefault bool
	Required   bool

	Enum            []string
	CaseInsensitive bool

	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ListLen      int // 0 = any length

	Fields []*FieldSpec // TypeBlock children
	Item   []*FieldSpec // fields of each TypeBlockList element

	// Aliases are deprecated spellings; they are accepted with a warning
	// and renamed to Key.
	Aliases []string

	// Derived fields may be supplied but are recomputed during derivation.
	Derived bool
	Since   string

	// Predicate is an extra single-field check; a non-nil error is reported
	// as a range violation.
	Predicate func(v value.Value) error

	children *fieldSet
	items    *fieldSet
}

// Child returns the nested field named key, or nil.
func (f *FieldSpec) Child(key string) *FieldSpec {
	switch {
	case f.children != nil:
		return f.children.byKey[key]
	case f.items != nil:
		return f.items.byKey[key]
	}
	return nil
}

func (f *FieldSpec) clone() *FieldSpec {
	cp := *f
	cp.Enum = append([]string(nil), f.Enum...)
	cp.Aliases = append([]string(nil), f.Aliases...)
	cp.Fields = cloneFields(f.Fields)
	cp.Item = cloneFields(f.Item)
	cp.children, cp.items = nil, nil
	return &cp
}

func cloneFields(in []*FieldSpec) []*FieldSpec {
	if in == nil {
		return nil
	}
	out := make([]*FieldSpec, len(in))
	for i, f := range in {
		out[i] = f.clone()
	}
	return out
}

// fieldSet is the compiled form of one block level.
type fieldSet struct {
	specs   []*FieldSpec
	byKey   map[string]*FieldSpec
	aliases map[string]*FieldSpec
}

func compile(specs []*FieldSpec) *fieldSet {
	fs := &fieldSet{
		specs:   specs,
		byKey:   make(map[string]*FieldSpec, len(specs)),
		aliases: make(map[string]*FieldSpec),
	}
	for _, f := range specs {
		fs.byKey[f.Key] = f
		for _, a := range f.Aliases {
			fs.aliases[a] = f
		}
		if len(f.Fields) > 0 || f.Type == TypeBlock {
			f.children = compile(f.Fields)
		}
		if len(f.Item) > 0 || f.Type == TypeBlockList {
			f.items = compile(f.Item)
		}
	}
	return fs
}

// field construction helpers used by the builtin tables

type option func(*FieldSpec)

func field(key string, t Type, opts ...option) *FieldSpec {
	f := &FieldSpec{Key: key, Type: t}
	for _, o := range opts {
		o(f)
	}
	return f
}

func def(v value.Value) option {
	return func(f *FieldSpec) { f.Default, f.HasDefault = v, true }
}

func defInt(i int64) option { return def(value.Int(i)) }
func defFloat(x float64) option { return def(value.Float(x)) }
func defBool(b bool) option { return def(value.Bool(b)) }
func defString(s string) option { return def(value.String(s)) }

// defBlock materializes an optional block so its children's defaults apply.
func defBlock() option { return def(value.FromBlock(value.NewBlock())) }

func required() option { return func(f *FieldSpec) { f.Required = true } }
func derived() option { return func(f *FieldSpec) { f.Derived = true } }

func doc(s string) option { return func(f *FieldSpec) { f.Doc = s } }
func since(v string) option { return func(f *FieldSpec) { f.Since = v } }

func enum(vals ...string) option {
	return func(f *FieldSpec) { f.Enum = vals }
}

func caseInsensitive() option { return func(f *FieldSpec) { f.CaseInsensitive = true } }

func atLeast(x float64) option { return func(f *FieldSpec) { f.Min = &x } }
func atMost(x float64) option { return func(f *FieldSpec) { f.Max = &x } }

func above(x float64) option {
	return func(f *FieldSpec) { f.Min, f.ExclusiveMin = &x, true }
}

func listLen(n int) option { return func(f *FieldSpec) { f.ListLen = n } }

func aliases(a ...string) option {
	return func(f *FieldSpec) { f.Aliases = a }
}

func fields(children ...*FieldSpec) option {
	return func(f *FieldSpec) { f.Fields = children }
}

func item(children ...*FieldSpec) option {
	return func(f *FieldSpec) { f.Item = children }
}

func predicate(p func(value.Value) error) option {
	return func(f *FieldSpec) { f.Predicate = p }
}
