package schema

import (
	"fmt"
	"strings"

	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/provenance"
	"trainplan/internal/source"
	"trainplan/internal/value"
)

// Options controls validation.
type Options struct {
	// Strict promotes unknown keys from warnings to errors.
	Strict   bool
	Reporter diag.Reporter
}

// Validate checks cfg against s and returns a new configuration with
// defaults applied, aliases renamed and unknown keys removed. Every field is
// checked; ok is false when any error was reported.
func Validate(cfg *merge.Config, s *Schema, opts Options) (out *merge.Config, ok bool) {
	if cfg == nil {
		cfg = merge.Empty()
	}
	v := &validator{
		opts:    opts,
		src:     cfg.Origins,
		prov:    provenance.NewBuilder(cfg.Origins),
		renamed: map[string]string{},
	}
	root := v.block(cfg.Root, s.root, nil)
	return &merge.Config{Root: root, Origins: v.prov.Build()}, v.errors == 0
}

type validator struct {
	opts    Options
	src     *provenance.Map
	prov    *provenance.Builder
	renamed map[string]string // canonical path -> alias path it came from
	errors  int
}

func (v *validator) span(path value.Path) source.Span {
	p := path.String()
	if sp := v.src.Span(p); sp.Valid() {
		return sp
	}
	if alias, ok := v.renamed[p]; ok {
		return v.src.Span(alias)
	}
	return source.NoSpan
}

func (v *validator) keySpan(path value.Path) source.Span {
	if o, ok := v.src.Winner(path.String()); ok && o.KeySpan.Valid() {
		return o.KeySpan
	}
	return v.span(path)
}

func (v *validator) report(sev diag.Severity, code diag.Code, sp source.Span, path value.Path, msg string) *diag.ReportBuilder {
	if sev >= diag.SevError {
		v.errors++
	}
	return diag.NewReportBuilder(v.opts.Reporter, sev, code, sp, msg).WithKey(path.String())
}

func (v *validator) block(b *value.Block, set *fieldSet, prefix value.Path) *value.Block {
	if set == nil {
		return b
	}

	// aliases and unknown keys, in input order
	in := value.NewBlock()
	for _, k := range b.Keys() {
		val, _ := b.Get(k)
		path := prefix.Child(k)
		if f, ok := set.aliases[k]; ok {
			canon := prefix.Child(f.Key)
			if b.Has(f.Key) {
				v.report(diag.SevError, diag.SchAliasConflict, v.keySpan(path), canon,
					fmt.Sprintf("%q and its deprecated spelling %q are both set", canon.String(), k)).
					WithNote(v.keySpan(canon), "canonical key set here").
					Emit()
				v.prov.Delete(path.String())
				continue
			}
			v.report(diag.SevWarning, diag.SchDeprecatedAlias, v.keySpan(path), canon,
				fmt.Sprintf("%q is deprecated; use %q", k, f.Key)).
				WithValue(val.Render()).
				Emit()
			v.prov.Rename(path.String(), canon.String())
			v.renamed[canon.String()] = path.String()
			in = in.With(f.Key, val)
			continue
		}
		if _, ok := set.byKey[k]; !ok {
			v.unknown(set, path, val)
			continue
		}
		in = in.With(k, val)
	}

	out := value.NewBlock()
	for _, f := range set.specs {
		path := prefix.Child(f.Key)
		val, present := in.Get(f.Key)
		if present && val.IsNull() {
			present = false
			v.prov.Delete(path.String())
		}
		if !present {
			if dv, ok := v.missing(f, path, prefix); ok {
				out = out.With(f.Key, dv)
			}
			continue
		}
		if nv, ok := v.check(f, val, path); ok {
			out = out.With(f.Key, nv)
		}
	}
	return out
}

func (v *validator) unknown(set *fieldSet, path value.Path, val value.Value) {
	sev := diag.SevWarning
	if v.opts.Strict {
		sev = diag.SevError
	}
	msg := fmt.Sprintf("unknown key %q", path.String())
	if hint := suggest(path.Last(), set); hint != "" {
		msg += fmt.Sprintf("; did you mean %q?", hint)
	}
	v.report(sev, diag.SchUnknownKey, v.keySpan(path), path, msg).
		WithValue(val.Render()).
		Emit()
	v.prov.Delete(path.String())
}

// missing handles an absent field: an error when required, its default when
// it has one, nothing otherwise.
func (v *validator) missing(f *FieldSpec, path, parent value.Path) (value.Value, bool) {
	switch {
	case f.Required:
		v.report(diag.SevError, diag.SchMissingRequired, v.span(parent), path,
			fmt.Sprintf("missing required key %q", path.String())).
			Emit()
		return value.Null(), false
	case !f.HasDefault:
		return value.Null(), false
	}

	dv := f.Default
	v.prov.Append(path.String(), provenance.Origin{
		Kind:    provenance.FromDefault,
		Span:    source.NoSpan,
		KeySpan: source.NoSpan,
		Value:   dv.Render(),
	})
	if f.children != nil && dv.IsBlock() {
		dv = value.FromBlock(v.block(dv.Block(), f.children, path))
	}
	return dv, true
}

func (v *validator) mismatch(f *FieldSpec, val value.Value, path value.Path, want string) {
	v.report(diag.SevError, diag.SchTypeMismatch, v.span(path), path,
		fmt.Sprintf("%q must be %s, found %s", path.String(), want, val.Kind())).
		WithValue(val.Render()).
		Emit()
}

func (v *validator) outOfRange(val value.Value, path value.Path, msg string) {
	v.report(diag.SevError, diag.SchOutOfRange, v.span(path), path, msg).
		WithValue(val.Render()).
		Emit()
}

func (v *validator) check(f *FieldSpec, val value.Value, path value.Path) (value.Value, bool) {
	var out value.Value
	switch f.Type {
	case TypeInteger, TypePositiveInteger, TypeNonNegativeInteger:
		n, ok := val.IntVal()
		if !ok {
			v.mismatch(f, val, path, "an integer")
			return val, false
		}
		if f.Type == TypePositiveInteger && n <= 0 {
			v.outOfRange(val, path, fmt.Sprintf("%q must be a positive integer", path.String()))
			return val, false
		}
		if f.Type == TypeNonNegativeInteger && n < 0 {
			v.outOfRange(val, path, fmt.Sprintf("%q must not be negative", path.String()))
			return val, false
		}
		out = value.Int(n)

	case TypeFloat:
		x, ok := val.FloatVal()
		if !ok {
			v.mismatch(f, val, path, "a number")
			return val, false
		}
		out = value.Float(x)

	case TypeBool:
		if _, ok := val.BoolVal(); !ok {
			v.mismatch(f, val, path, "a boolean")
			return val, false
		}
		out = val

	case TypeString:
		if _, ok := val.StringVal(); !ok {
			v.mismatch(f, val, path, "a string")
			return val, false
		}
		out = val

	case TypeEnum:
		s, ok := val.StringVal()
		if !ok {
			v.mismatch(f, val, path, "a string")
			return val, false
		}
		canon, found := matchEnum(f, s)
		if !found {
			v.report(diag.SevError, diag.SchEnumViolation, v.span(path), path,
				fmt.Sprintf("%q must be one of %s", path.String(), strings.Join(f.Enum, ", "))).
				WithValue(val.Render()).
				Emit()
			return val, false
		}
		out = value.String(canon)

	case TypeBlock:
		b := val.Block()
		if b == nil {
			v.mismatch(f, val, path, "a block")
			return val, false
		}
		out = value.FromBlock(v.block(b, f.children, path))

	case TypeBlockList:
		if val.Kind() != value.KindList {
			v.mismatch(f, val, path, "a list of blocks")
			return val, false
		}
		items := val.Items()
		res := make([]value.Value, len(items))
		good := true
		for i, it := range items {
			elemPath := path.Parent().Child(value.IndexKey(f.Key, i))
			b := it.Block()
			if b == nil {
				v.mismatch(f, it, elemPath, "a block")
				good = false
				continue
			}
			res[i] = value.FromBlock(v.block(b, f.items, elemPath))
		}
		if !good {
			return val, false
		}
		out = value.List(res...)

	case TypeFloatList:
		if val.Kind() != value.KindList {
			v.mismatch(f, val, path, "a list of numbers")
			return val, false
		}
		items := val.Items()
		res := make([]value.Value, len(items))
		for i, it := range items {
			x, ok := it.FloatVal()
			if !ok {
				v.mismatch(f, it, path.Parent().Child(value.IndexKey(f.Key, i)), "a number")
				return val, false
			}
			res[i] = value.Float(x)
		}
		out = value.List(res...)

	case TypeIntOrAuto:
		if s, ok := val.StringVal(); ok && strings.EqualFold(s, "auto") {
			out = value.String("auto")
			break
		}
		n, ok := val.IntVal()
		if !ok {
			v.mismatch(f, val, path, `an integer or "auto"`)
			return val, false
		}
		if n < 0 {
			v.outOfRange(val, path, fmt.Sprintf("%q must not be negative", path.String()))
			return val, false
		}
		out = value.Int(n)

	case TypeAny:
		out = val

	default:
		v.mismatch(f, val, path, f.Type.String())
		return val, false
	}

	if !v.checkConstraints(f, out, path) {
		return out, false
	}
	return out, true
}

func (v *validator) checkConstraints(f *FieldSpec, val value.Value, path value.Path) bool {
	ok := true
	if x, isNum := val.FloatVal(); isNum {
		if f.Min != nil {
			if f.ExclusiveMin && x <= *f.Min {
				v.outOfRange(val, path, fmt.Sprintf("%q must be > %s", path.String(), value.FormatFloat(*f.Min)))
				ok = false
			} else if !f.ExclusiveMin && x < *f.Min {
				v.outOfRange(val, path, fmt.Sprintf("%q must be >= %s", path.String(), value.FormatFloat(*f.Min)))
				ok = false
			}
		}
		if f.Max != nil && x > *f.Max {
			v.outOfRange(val, path, fmt.Sprintf("%q must be <= %s", path.String(), value.FormatFloat(*f.Max)))
			ok = false
		}
	}
	if f.ListLen > 0 && val.Kind() == value.KindList && len(val.Items()) != f.ListLen {
		v.report(diag.SevError, diag.SchListLength, v.span(path), path,
			fmt.Sprintf("%q must have %d elements, found %d", path.String(), f.ListLen, len(val.Items()))).
			WithValue(val.Render()).
			Emit()
		ok = false
	}
	if ok && f.Predicate != nil {
		if err := f.Predicate(val); err != nil {
			v.outOfRange(val, path, err.Error())
			ok = false
		}
	}
	return ok
}

func matchEnum(f *FieldSpec, s string) (string, bool) {
	for _, e := range f.Enum {
		if e == s || (f.CaseInsensitive && strings.EqualFold(e, s)) {
			return e, true
		}
	}
	return "", false
}

// suggest returns the known key closest to key, if any is close enough.
func suggest(key string, set *fieldSet) string {
	norm := func(s string) string { return strings.ToLower(strings.ReplaceAll(s, "_", "-")) }
	best, bestDist := "", 3
	for _, f := range set.specs {
		if norm(f.Key) == norm(key) {
			return f.Key
		}
		if d := editDistance(key, f.Key); d < bestDist {
			best, bestDist = f.Key, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
