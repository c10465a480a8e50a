package source

import (
	"fmt"
)

// Span is a half-open byte range inside one source.
type Span struct {
	File  FileID
	Start uint32 // inclusive
	End   uint32 // exclusive
}

// NoSpan is used for diagnostics that have no location in any source
// (defaults, derived values, topology checks).
var NoSpan = Span{File: NoFile}

// NoFile is the FileID of NoSpan.
const NoFile FileID = ^FileID(0)

func (s Span) Empty() bool {
	return s.Start == s.End
}

// Valid reports whether the span points into a registered source.
func (s Span) Valid() bool {
	return s.File != NoFile
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	if !s.Valid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other.
// Spans from different files are not combined.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}
