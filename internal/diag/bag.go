package diag

import (
	"fmt"
	"sort"
)

// Bag accumulates diagnostics of one resolution request.
type Bag struct {
	items []Diagnostic
	max   int
	// число ошибок, не попавших в bag из-за лимита
	droppedErrors   int
	droppedWarnings int
	dropped         int
}

// NewBag returns a bag keeping at most max diagnostics; max <= 0 means no limit.
func NewBag(max int) *Bag {
	capHint := max
	if capHint <= 0 || capHint > 64 {
		capHint = 16
	}
	return &Bag{
		items: make([]Diagnostic, 0, capHint),
		max:   max,
	}
}

// Add appends d unless the limit is reached. Dropped errors still count
// towards HasErrors so a truncated bag never looks clean.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		b.dropped++
		switch {
		case d.Severity >= SevError:
			b.droppedErrors++
		case d.Severity == SevWarning:
			b.droppedWarnings++
		}
		return false
	}
	b.items = append(b.items, d)
	return true
}

// AddAll adds every diagnostic of ds.
func (b *Bag) AddAll(ds []Diagnostic) {
	for _, d := range ds {
		b.Add(d)
	}
}

// Dropped returns how many diagnostics were discarded by the limit.
func (b *Bag) Dropped() int {
	return b.dropped
}

// HasErrors возвращает true, если есть хотя бы одна ошибка.
func (b *Bag) HasErrors() bool {
	if b.droppedErrors > 0 {
		return true
	}
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic is a warning or worse.
func (b *Bag) HasWarnings() bool {
	if b.droppedErrors+b.droppedWarnings > 0 {
		return true
	}
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

// Status classifies the bag as clean, warnings only or rejected.
func (b *Bag) Status() Status {
	switch {
	case b.HasErrors():
		return StatusRejected
	case b.HasWarnings():
		return StatusWarnings
	default:
		return StatusClean
	}
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Count returns the number of diagnostics with exactly sev.
func (b *Bag) Count(sev Severity) int {
	n := 0
	for i := range b.items {
		if b.items[i].Severity == sev {
			n++
		}
	}
	return n
}

// Items returns the internal slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Merge appends all diagnostics of other, growing the limit if needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	if newTotal := len(b.items) + len(other.items); b.max > 0 && newTotal > b.max {
		b.max = newTotal
	}
	b.items = append(b.items, other.items...)
	b.dropped += other.dropped
	b.droppedErrors += other.droppedErrors
	b.droppedWarnings += other.droppedWarnings
}

// Sort orders diagnostics grouped by key, then by position,
// severity (desc) and code so output is deterministic.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Key != dj.Key {
			return di.Key < dj.Key
		}
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})
}

// Groups splits sorted items into runs sharing the same key.
func (b *Bag) Groups() [][]Diagnostic {
	var out [][]Diagnostic
	for i := 0; i < len(b.items); {
		j := i + 1
		for j < len(b.items) && b.items[j].Key == b.items[i].Key {
			j++
		}
		out = append(out, b.items[i:j])
		i = j
	}
	return out
}

// Dedup drops repeated diagnostics (same code, key, span and message).
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	items := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%s|%s|%s|%s", d.Code.ID(), d.Key, d.Primary.String(), d.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, d)
	}
	b.items = items
}
