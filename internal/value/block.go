package value

import (
	"slices"
)

// Block is an ordered mapping. Insertion order is kept for display;
// emitters sort keys themselves.
type Block struct {
	keys []string
	vals map[string]Value
}

func NewBlock() *Block {
	return &Block{vals: map[string]Value{}}
}

func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns keys in insertion order; the slice must not be modified.
func (b *Block) Keys() []string {
	if b == nil {
		return nil
	}
	return b.keys
}

// SortedKeys returns a sorted copy of the keys.
func (b *Block) SortedKeys() []string {
	out := slices.Clone(b.Keys())
	slices.Sort(out)
	return out
}

func (b *Block) Get(key string) (Value, bool) {
	if b == nil {
		return Value{}, false
	}
	v, ok := b.vals[key]
	return v, ok
}

func (b *Block) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

func (b *Block) clone() *Block {
	out := &Block{
		keys: make([]string, len(b.Keys()), len(b.Keys())+1),
		vals: make(map[string]Value, b.Len()+1),
	}
	if b == nil {
		return out
	}
	copy(out.keys, b.keys)
	for k, v := range b.vals {
		out.vals[k] = v
	}
	return out
}

// With returns a copy of b with key set to v. An existing key keeps its position.
func (b *Block) With(key string, v Value) *Block {
	out := b.clone()
	if _, ok := out.vals[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.vals[key] = v
	return out
}

// Without returns a copy of b lacking key.
func (b *Block) Without(key string) *Block {
	if !b.Has(key) {
		return b
	}
	out := b.clone()
	delete(out.vals, key)
	out.keys = slices.DeleteFunc(out.keys, func(k string) bool { return k == key })
	return out
}

// Lookup follows path through nested blocks.
func (b *Block) Lookup(path Path) (Value, bool) {
	if len(path) == 0 {
		return FromBlock(b), b != nil
	}
	cur := b
	for i, seg := range path {
		v, ok := cur.Get(seg)
		if !ok {
			return Value{}, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if !v.IsBlock() {
			return Value{}, false
		}
		cur = v.Block()
	}
	return Value{}, false
}

// SetPath returns a copy of b with path set to v, creating intermediate
// blocks and replacing non-block intermediates.
func (b *Block) SetPath(path Path, v Value) *Block {
	if len(path) == 0 {
		return b
	}
	if len(path) == 1 {
		return b.With(path[0], v)
	}
	child, ok := b.Get(path[0])
	var inner *Block
	if ok && child.IsBlock() {
		inner = child.Block()
	} else {
		inner = NewBlock()
	}
	return b.With(path[0], FromBlock(inner.SetPath(path[1:], v)))
}

// DeletePath returns a copy of b lacking path. Missing paths return b unchanged.
func (b *Block) DeletePath(path Path) *Block {
	switch len(path) {
	case 0:
		return b
	case 1:
		return b.Without(path[0])
	}
	child, ok := b.Get(path[0])
	if !ok || !child.IsBlock() {
		return b
	}
	return b.With(path[0], FromBlock(child.Block().DeletePath(path[1:])))
}

// Walk visits every leaf and block under b depth-first in insertion order.
// fn returning false skips the children of a block.
func (b *Block) Walk(fn func(path Path, v Value) bool) {
	b.walk(nil, fn)
}

func (b *Block) walk(prefix Path, fn func(Path, Value) bool) {
	for _, k := range b.Keys() {
		v := b.vals[k]
		p := prefix.Child(k)
		if !fn(p, v) {
			continue
		}
		if v.IsBlock() {
			v.Block().walk(p, fn)
		}
	}
}

// Equal compares blocks ignoring key order.
func (b *Block) Equal(o *Block) bool {
	if b.Len() != o.Len() {
		return false
	}
	for _, k := range b.Keys() {
		ov, ok := o.Get(k)
		if !ok || !b.vals[k].Equal(ov) {
			return false
		}
	}
	return true
}
