package diag

import "trainplan/internal/source"

type dedupKey struct {
	code  Code
	sev   Severity
	key   string
	file  source.FileID
	start uint32
	msg   string
}

// DedupReporter wraps another Reporter and suppresses duplicate diagnostics
// with the same code, severity, key, primary span and message.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that filters out duplicates while
// forwarding unique diagnostics to next.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	k := dedupKey{
		code:  d.Code,
		sev:   d.Severity,
		key:   d.Key,
		file:  d.Primary.File,
		start: d.Primary.Start,
		msg:   d.Message,
	}
	if _, ok := r.seen[k]; ok {
		return
	}
	r.seen[k] = struct{}{}
	if r.next != nil {
		r.next.Report(d)
	}
}
