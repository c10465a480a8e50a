package fragment

import (
	"trainplan/internal/provenance"
	"trainplan/internal/value"
)

// build freezes obj into an immutable block and records an origin for every
// block, leaf and list element it contains.
func (p *parser) build(obj *object, prefix value.Path, prov *provenance.Builder, name string, rank int) *value.Block {
	b := value.NewBlock()
	for _, k := range obj.keys {
		e := obj.entries[k]
		path := prefix.Child(k)
		v := p.freeze(e.node, path, prov, name, rank)
		prov.Append(path.String(), provenance.Origin{
			Kind:    provenance.FromFragment,
			Source:  name,
			Rank:    rank,
			Span:    e.node.span,
			KeySpan: e.keySpan,
			Value:   v.Render(),
		})
		b = b.With(k, v)
	}
	return b
}

func (p *parser) freeze(n *node, path value.Path, prov *provenance.Builder, name string, rank int) value.Value {
	switch {
	case n.obj != nil:
		return value.FromBlock(p.build(n.obj, path, prov, name, rank))
	case n.isList:
		items := make([]value.Value, len(n.items))
		parent, last := path.Parent(), path.Last()
		for i, it := range n.items {
			elemPath := parent.Child(value.IndexKey(last, i))
			items[i] = p.freeze(it, elemPath, prov, name, rank)
			prov.Append(elemPath.String(), provenance.Origin{
				Kind:    provenance.FromFragment,
				Source:  name,
				Rank:    rank,
				Span:    it.span,
				KeySpan: it.span,
				Value:   items[i].Render(),
			})
		}
		return value.List(items...)
	default:
		return n.scalar
	}
}
