// Package merge folds ordered fragments into a single configuration tree.
//
// Precedence is positional: later inputs override earlier ones. Blocks merge
// key by key, every other value (scalars and lists) is replaced outright, and
// a change between block and non-block replaces the whole subtree. Inputs are
// never modified.
package merge

import (
	"trainplan/internal/fragment"
	"trainplan/internal/provenance"
	"trainplan/internal/value"
)

// Config is a merged configuration: one value tree and its provenance.
type Config struct {
	Root    *value.Block
	Origins *provenance.Map
}

// Empty returns a configuration without keys.
func Empty() *Config {
	return &Config{Root: value.NewBlock(), Origins: provenance.Empty}
}

// FromFragment views a single fragment as a merged configuration.
func FromFragment(f *fragment.Fragment) *Config {
	if f == nil {
		return Empty()
	}
	return &Config{Root: f.Root, Origins: f.Origins}
}

// Merge folds frags from lowest to highest precedence.
func Merge(frags ...*fragment.Fragment) *Config {
	acc := Empty()
	for _, f := range frags {
		acc = MergeConfigs(acc, FromFragment(f))
	}
	return acc
}

// MergeConfigs applies each overlay on top of base, left to right.
func MergeConfigs(base *Config, overlays ...*Config) *Config {
	if base == nil {
		base = Empty()
	}
	acc := base
	for _, over := range overlays {
		if over == nil {
			continue
		}
		prov := provenance.NewBuilder(acc.Origins)
		root := mergeBlock(acc.Root, over.Root, nil, prov, over.Origins)
		acc = &Config{Root: root, Origins: prov.Build()}
	}
	return acc
}

func mergeBlock(base, over *value.Block, prefix value.Path, prov *provenance.Builder, overOrigins *provenance.Map) *value.Block {
	out := base
	for _, k := range over.Keys() {
		ov, _ := over.Get(k)
		path := prefix.Child(k)
		key := path.String()
		bv, exists := base.Get(k)

		if exists && bv.IsBlock() && ov.IsBlock() {
			prov.AppendChain(key, overOrigins.Chain(key))
			merged := mergeBlock(bv.Block(), ov.Block(), path, prov, overOrigins)
			out = out.With(k, value.FromBlock(merged))
			continue
		}

		// outright replacement: forget what used to live below key
		prov.DropChildren(key)
		chain := overOrigins.Chain(key)
		if exists && bv.IsBlock() != ov.IsBlock() && len(chain) > 0 {
			chain[len(chain)-1].Note = "replaced " + bv.Kind().String() + " with " + ov.Kind().String()
		}
		prov.AppendChain(key, chain)
		for _, sub := range overOrigins.Under(key) {
			prov.AppendChain(sub, overOrigins.Chain(sub))
		}
		out = out.With(k, ov)
	}
	return out
}
