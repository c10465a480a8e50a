package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainplan/internal/source"
)

func TestBuilderDoesNotTouchBase(t *testing.T) {
	b := NewBuilder(nil)
	b.Append("optimizer.params.lr", Origin{Source: "base.json", Rank: 0, Value: "0.0006"})
	base := b.Build()

	nb := NewBuilder(base)
	nb.Append("optimizer.params.lr", Origin{Source: "override.json", Rank: 1, Value: "0.0001"})
	next := nb.Build()

	assert.Len(t, base.Chain("optimizer.params.lr"), 1)
	chain := next.Chain("optimizer.params.lr")
	require.Len(t, chain, 2)
	assert.Equal(t, "base.json", chain[0].Source)
	w, ok := next.Winner("optimizer.params.lr")
	require.True(t, ok)
	assert.Equal(t, "override.json", w.Source)
}

func TestDropChildren(t *testing.T) {
	b := NewBuilder(nil)
	b.Append("fp16", Origin{Source: "a"})
	b.Append("fp16.enabled", Origin{Source: "a"})
	b.Append("fp16x", Origin{Source: "a"})
	b.Append("fp16[0]", Origin{Source: "a"})
	b.DropChildren("fp16")
	m := b.Build()
	assert.Equal(t, []string{"fp16", "fp16x"}, m.Paths())

	b2 := NewBuilder(m)
	b2.Delete("fp16")
	assert.Equal(t, []string{"fp16x"}, b2.Build().Paths())
}

func TestDescribe(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("base.json", []byte("{\n  \"lr\": 1\n}"))

	assert.Equal(t, "base.json:2:9", Origin{Span: source.Span{File: id, Start: 10, End: 11}}.Describe(fs))
	assert.Equal(t, "<default>", Origin{Kind: FromDefault}.Describe(fs))
	assert.Equal(t, "<derived: micro x accumulation x dp>", Origin{Kind: FromDerived, Note: "micro x accumulation x dp"}.Describe(fs))
	assert.Equal(t, "cli", Origin{Source: "cli", Span: source.NoSpan}.Describe(fs))

	var nilMap *Map
	assert.Equal(t, source.NoSpan, nilMap.Span("x"))
	assert.Zero(t, nilMap.Len())
}

func TestReport(t *testing.T) {
	b := NewBuilder(nil)
	b.Append("train-iters", Origin{Source: "x"})
	b.Append("lr-decay-iters", Origin{Kind: FromDerived})
	assert.Equal(t, "lr-decay-iters\t<derived>\ntrain-iters\tx\n", b.Build().Report(nil))
}

func TestUnder(t *testing.T) {
	b := NewBuilder(nil)
	for _, p := range []string{"fp16", "fp16.enabled", "fp16[0]", "fp16x", "zero_optimization.stage"} {
		b.Append(p, Origin{Kind: FromFragment})
	}
	assert.Equal(t, []string{"fp16.enabled", "fp16[0]"}, b.Build().Under("fp16"))
	assert.Empty(t, Empty.Under("fp16"))
}

func TestRename(t *testing.T) {
	b := NewBuilder(nil)
	b.Append("min-lr", Origin{Source: "a.json", Value: "0.1"})
	b.Append("zero", Origin{Source: "a.json"})
	b.Append("zero.stage", Origin{Source: "a.json", Value: "1"})
	b.Rename("min-lr", "min_lr")
	b.Rename("zero", "zero_optimization")
	m := b.Build()

	assert.Empty(t, m.Chain("min-lr"))
	w, ok := m.Winner("min_lr")
	require.True(t, ok)
	assert.Equal(t, "0.1", w.Value)
	assert.Equal(t, []string{"min_lr", "zero_optimization", "zero_optimization.stage"}, m.Paths())
}
