package value

import (
	"strconv"
	"strings"
)

// Path addresses a value inside nested blocks.
type Path []string

// ParsePath splits a dotted key. Empty segments are dropped.
func ParsePath(s string) Path {
	parts := strings.Split(s, ".")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with seg appended; p is not modified.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final segment or "".
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// HasPrefix reports whether q is a prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// IndexKey renders a list element key such as datasets[2].
func IndexKey(key string, i int) string {
	return key + "[" + strconv.Itoa(i) + "]"
}
