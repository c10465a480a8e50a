// Package fragment turns the text of one configuration source into an
// immutable value tree plus per-key provenance.
package fragment

import (
	"trainplan/internal/diag"
	"trainplan/internal/lexer"
	"trainplan/internal/provenance"
	"trainplan/internal/source"
	"trainplan/internal/value"
)

// Fragment is one parsed configuration source, pre-merge.
type Fragment struct {
	Source  string
	Rank    int
	File    source.FileID
	Root    *value.Block
	Origins *provenance.Map
}

// Options controls loading of a single source.
type Options struct {
	Reporter diag.Reporter
	// Rank is the merge precedence; higher ranks override lower ones.
	Rank int
}

// Load parses source id of fs. The returned fragment is usable only when ok
// is true; otherwise every syntax error has been reported to opts.Reporter.
func Load(fs *source.FileSet, id source.FileID, opts Options) (frag *Fragment, ok bool) {
	file := fs.Get(id)
	if file == nil {
		return nil, false
	}
	rep := &countingReporter{next: opts.Reporter}
	p := &parser{
		lx:   lexer.New(file, lexer.Options{Reporter: rep}),
		file: file,
		rep:  rep,
	}
	obj := p.parseDocument()

	prov := provenance.NewBuilder(nil)
	root := p.build(obj, nil, prov, file.Path, opts.Rank)
	if rep.errors > 0 {
		return nil, false
	}
	return &Fragment{
		Source:  file.Path,
		Rank:    opts.Rank,
		File:    id,
		Root:    root,
		Origins: prov.Build(),
	}, true
}

// LoadText registers content as a virtual source and loads it.
func LoadText(fs *source.FileSet, name string, content []byte, opts Options) (*Fragment, bool) {
	return Load(fs, fs.AddVirtual(name, content), opts)
}

type countingReporter struct {
	next   diag.Reporter
	errors int
}

func (r *countingReporter) Report(d diag.Diagnostic) {
	if d.Severity >= diag.SevError {
		r.errors++
	}
	if r.next != nil {
		r.next.Report(d)
	}
}
