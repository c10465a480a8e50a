package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trainplan/internal/diag"
	"trainplan/internal/provenance"
	"trainplan/internal/value"
)

// Document is the YAML form of a field list. Extension files use it, and
// Schema.Document produces it for dumps.
type Document struct {
	Version    string     `yaml:"version,omitempty"`
	Extensions []string   `yaml:"extensions,omitempty"`
	Fields     []FieldDoc `yaml:"fields"`
}

// FieldDoc is the YAML form of a FieldSpec.
type FieldDoc struct {
	Key             string     `yaml:"key"`
	Type            string     `yaml:"type"`
	Doc             string     `yaml:"doc,omitempty"`
	Default         any        `yaml:"default,omitempty"`
	Required        bool       `yaml:"required,omitempty"`
	Enum            []string   `yaml:"enum,omitempty"`
	CaseInsensitive bool       `yaml:"case-insensitive,omitempty"`
	Min             *float64   `yaml:"min,omitempty"`
	Max             *float64   `yaml:"max,omitempty"`
	ExclusiveMin    bool       `yaml:"exclusive-min,omitempty"`
	ListLen         int        `yaml:"list-len,omitempty"`
	Aliases         []string   `yaml:"aliases,omitempty"`
	Derived         bool       `yaml:"derived,omitempty"`
	Since           string     `yaml:"since,omitempty"`
	Fields          []FieldDoc `yaml:"fields,omitempty"`
	Item            []FieldDoc `yaml:"item,omitempty"`
}

// Extension is a set of additional fields loaded from a YAML file.
type Extension struct {
	Name   string
	Fields []*FieldSpec
}

// ExtensionError reports an invalid extension field.
type ExtensionError struct {
	Source string
	Key    string
	Msg    string
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("%s %s: field %q: %s", diag.SchInvalidExtension.ID(), e.Source, e.Key, e.Msg)
}

// LoadExtension reads an extension file from disk.
func LoadExtension(path string) (*Extension, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema extension: %w", err)
	}
	return ParseExtension(path, data)
}

// ParseExtension decodes an extension document named name.
func ParseExtension(name string, data []byte) (*Extension, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	ext := &Extension{Name: name}
	for _, fd := range doc.Fields {
		f, err := fieldFromDoc(name, fd, "")
		if err != nil {
			return nil, err
		}
		ext.Fields = append(ext.Fields, f)
	}
	return ext, nil
}

func fieldFromDoc(src string, d FieldDoc, prefix string) (*FieldSpec, error) {
	full := d.Key
	if prefix != "" {
		full = prefix + "." + d.Key
	}
	fail := func(format string, args ...any) error {
		return &ExtensionError{Source: src, Key: full, Msg: fmt.Sprintf(format, args...)}
	}
	if d.Key == "" {
		return nil, fail("empty key")
	}
	t, err := ParseType(d.Type)
	if err != nil {
		return nil, fail("%v", err)
	}
	if t == TypeEnum && len(d.Enum) == 0 {
		return nil, fail("enum field declares no values")
	}
	f := &FieldSpec{
		Key:             d.Key,
		Type:            t,
		Doc:             d.Doc,
		Required:        d.Required,
		Enum:            d.Enum,
		CaseInsensitive: d.CaseInsensitive,
		Min:             d.Min,
		Max:             d.Max,
		ExclusiveMin:    d.ExclusiveMin,
		ListLen:         d.ListLen,
		Aliases:         d.Aliases,
		Derived:         d.Derived,
		Since:           d.Since,
	}
	for _, c := range d.Fields {
		cf, err := fieldFromDoc(src, c, full)
		if err != nil {
			return nil, err
		}
		f.Fields = append(f.Fields, cf)
	}
	for _, c := range d.Item {
		cf, err := fieldFromDoc(src, c, full+"[]")
		if err != nil {
			return nil, err
		}
		f.Item = append(f.Item, cf)
	}
	if d.Default != nil {
		dv, err := value.FromAny(d.Default)
		if err != nil {
			return nil, fail("default: %v", err)
		}
		if f.Required {
			return nil, fail("a required field cannot have a default")
		}
		// the default must itself be a valid value of the field
		compile([]*FieldSpec{f})
		rep := &diag.SliceReporter{}
		v := &validator{
			opts:    Options{Reporter: rep},
			prov:    provenance.NewBuilder(nil),
			renamed: map[string]string{},
		}
		checked, ok := v.check(f, dv, value.ParsePath(full))
		if !ok || v.errors > 0 {
			return nil, fail("invalid default %s: %s", dv.Render(), rep.Items[0].Message)
		}
		if checked.IsBlock() {
			// child defaults are applied at validation time
			checked = dv
		}
		f.Default, f.HasDefault = checked, true
		f.children, f.items = nil, nil
	}
	return f, nil
}

// Extend returns a new schema with the fields of exts added. A dotted key
// adds a field inside an existing block. Redefining a field is an error.
func (s *Schema) Extend(exts ...*Extension) (*Schema, error) {
	if len(exts) == 0 {
		return s, nil
	}
	specs := cloneFields(s.root.specs)
	names := s.Extensions()
	for _, ext := range exts {
		for _, f := range ext.Fields {
			var err error
			specs, err = insertField(specs, ext.Name, f)
			if err != nil {
				return nil, err
			}
		}
		names = append(names, ext.Name)
	}
	return newSchema(s.version, names, specs), nil
}

func insertField(specs []*FieldSpec, src string, f *FieldSpec) ([]*FieldSpec, error) {
	parts := strings.Split(f.Key, ".")
	leaf := f.clone()
	leaf.Key = parts[len(parts)-1]

	level := &specs
	for i, seg := range parts[:len(parts)-1] {
		var parent *FieldSpec
		for _, cand := range *level {
			if cand.Key == seg {
				parent = cand
				break
			}
		}
		if parent == nil || parent.Type != TypeBlock {
			return nil, &ExtensionError{Source: src, Key: f.Key,
				Msg: fmt.Sprintf("%q is not a block field", strings.Join(parts[:i+1], "."))}
		}
		level = &parent.Fields
	}
	for _, cand := range *level {
		if cand.Key == leaf.Key {
			return nil, &ExtensionError{Source: src, Key: f.Key, Msg: "redefines an existing field"}
		}
		for _, a := range cand.Aliases {
			if a == leaf.Key {
				return nil, &ExtensionError{Source: src, Key: f.Key, Msg: fmt.Sprintf("is an alias of %q", cand.Key)}
			}
		}
	}
	*level = append(*level, leaf)
	return specs, nil
}

// Document describes s in the extension file format.
func (s *Schema) Document() Document {
	return Document{
		Version:    s.version,
		Extensions: s.Extensions(),
		Fields:     docsOf(s.root.specs),
	}
}

// YAML renders the full schema document.
func (s *Schema) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.Document()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func docsOf(specs []*FieldSpec) []FieldDoc {
	if len(specs) == 0 {
		return nil
	}
	out := make([]FieldDoc, len(specs))
	for i, f := range specs {
		d := FieldDoc{
			Key:             f.Key,
			Type:            f.Type.String(),
			Doc:             f.Doc,
			Required:        f.Required,
			Enum:            f.Enum,
			CaseInsensitive: f.CaseInsensitive,
			Min:             f.Min,
			Max:             f.Max,
			ExclusiveMin:    f.ExclusiveMin,
			ListLen:         f.ListLen,
			Aliases:         f.Aliases,
			Derived:         f.Derived,
			Since:           f.Since,
			Fields:          docsOf(f.Fields),
			Item:            docsOf(f.Item),
		}
		if f.HasDefault {
			d.Default = f.Default.ToAny()
		}
		out[i] = d
	}
	return out
}
