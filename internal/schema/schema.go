// Package schema declares the accepted configuration keys and validates a
// merged configuration against them.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"trainplan/internal/value"
)

// Schema is an immutable, versioned set of field specs.
type Schema struct {
	version     string
	extensions  []string
	root        *fieldSet
	fingerprint string
}

func newSchema(version string, exts []string, specs []*FieldSpec) *Schema {
	s := &Schema{
		version:    version,
		extensions: exts,
		root:       compile(specs),
	}
	s.fingerprint = s.computeFingerprint()
	return s
}

// Version returns the schema version, e.g. "2.0".
func (s *Schema) Version() string { return s.version }

// Extensions lists the names of extension files folded into s.
func (s *Schema) Extensions() []string {
	return append([]string(nil), s.extensions...)
}

// Fields returns the top-level fields in declaration order.
func (s *Schema) Fields() []*FieldSpec {
	return append([]*FieldSpec(nil), s.root.specs...)
}

// Lookup finds the field addressed by a dotted path. List elements are
// addressed through their list key, so "datasets.weight" and
// "datasets[0].weight" both resolve.
func (s *Schema) Lookup(path string) *FieldSpec {
	set := s.root
	var f *FieldSpec
	for _, seg := range value.ParsePath(path) {
		if i := strings.IndexByte(seg, '['); i >= 0 {
			seg = seg[:i]
		}
		if set == nil {
			return nil
		}
		f = set.byKey[seg]
		if f == nil {
			return nil
		}
		set = f.children
		if set == nil {
			set = f.items
		}
	}
	return f
}

// Walk visits every field depth-first with its dotted path. Item fields of
// a list are visited as "list[].field".
func (s *Schema) Walk(fn func(path string, f *FieldSpec)) {
	walkSet(s.root, "", fn)
}

func walkSet(set *fieldSet, prefix string, fn func(string, *FieldSpec)) {
	if set == nil {
		return
	}
	for _, f := range set.specs {
		p := f.Key
		if prefix != "" {
			p = prefix + "." + f.Key
		}
		fn(p, f)
		walkSet(f.children, p, fn)
		walkSet(f.items, p+"[]", fn)
	}
}

// Fingerprint identifies the accepted shape of s; two schemas with the same
// fingerprint validate identically (predicates aside).
func (s *Schema) Fingerprint() string { return s.fingerprint }

func (s *Schema) computeFingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "version=%s\n", s.version)
	s.Walk(func(path string, f *FieldSpec) {
		fmt.Fprintf(h, "%s|%s|req=%t|der=%t|len=%d|enum=%s|ci=%t|aliases=%s",
			path, f.Type, f.Required, f.Derived, f.ListLen,
			strings.Join(f.Enum, ","), f.CaseInsensitive, strings.Join(f.Aliases, ","))
		if f.HasDefault {
			fmt.Fprintf(h, "|def=%s", f.Default.Render())
		}
		if f.Min != nil {
			fmt.Fprintf(h, "|min=%s/%t", strconv.FormatFloat(*f.Min, 'g', -1, 64), f.ExclusiveMin)
		}
		if f.Max != nil {
			fmt.Fprintf(h, "|max=%s", strconv.FormatFloat(*f.Max, 'g', -1, 64))
		}
		h.Write([]byte{'\n'})
	})
	return hex.EncodeToString(h.Sum(nil))
}

// Builtin returns the builtin schema of the given version.
func Builtin(version string) (*Schema, error) {
	build, ok := builtins[version]
	if !ok {
		return nil, fmt.Errorf("unknown schema version %q (known: %s)", version, strings.Join(Versions(), ", "))
	}
	return newSchema(version, nil, build()), nil
}

// Latest returns the newest builtin schema.
func Latest() *Schema {
	s, err := Builtin(LatestVersion)
	if err != nil {
		panic(err)
	}
	return s
}

// Versions lists the builtin schema versions, oldest first.
func Versions() []string {
	return []string{"1.0", "2.0"}
}
