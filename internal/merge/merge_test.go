package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainplan/internal/diag"
	"trainplan/internal/fragment"
	"trainplan/internal/merge"
	"trainplan/internal/source"
	"trainplan/internal/value"
)

type fixture struct {
	t  *testing.T
	fs *source.FileSet
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, fs: source.NewFileSet()}
}

func (f *fixture) frag(name, text string, rank int) *fragment.Fragment {
	f.t.Helper()
	rep := &diag.SliceReporter{}
	fr, ok := fragment.LoadText(f.fs, name, []byte(text), fragment.Options{Reporter: rep, Rank: rank})
	require.True(f.t, ok, "%v", rep.Items)
	return fr
}

func lookup(t *testing.T, c *merge.Config, path string) value.Value {
	t.Helper()
	v, ok := c.Root.Lookup(value.ParsePath(path))
	require.True(t, ok, "missing %s", path)
	return v
}

func TestNestedMergeKeepsSiblings(t *testing.T) {
	f := newFixture(t)
	a := f.frag("a.json", `{"optimizer": {"type": "Adam", "params": {"lr": 0.0001}}}`, 0)
	b := f.frag("b.json", `{"optimizer": {"params": {"eps": 1e-8}}}`, 1)

	c := merge.Merge(a, b)

	lr, _ := lookup(t, c, "optimizer.params.lr").FloatVal()
	assert.Equal(t, 0.0001, lr)
	eps, _ := lookup(t, c, "optimizer.params.eps").FloatVal()
	assert.Equal(t, 1e-8, eps)
	typ, _ := lookup(t, c, "optimizer.type").StringVal()
	assert.Equal(t, "Adam", typ)

	w, ok := c.Origins.Winner("optimizer.params.lr")
	require.True(t, ok)
	assert.Equal(t, "a.json", w.Source)
	w, ok = c.Origins.Winner("optimizer.params.eps")
	require.True(t, ok)
	assert.Equal(t, "b.json", w.Source)
}

func TestScalarAndListLastWins(t *testing.T) {
	f := newFixture(t)
	a := f.frag("a.json", `{"train-iters": 100, "betas": [0.9, 0.95, 0.99]}`, 0)
	b := f.frag("b.json", `{"train-iters": 200, "betas": [0.8]}`, 1)

	c := merge.Merge(a, b)

	n, _ := lookup(t, c, "train-iters").IntVal()
	assert.EqualValues(t, 200, n)
	assert.Len(t, lookup(t, c, "betas").Items(), 1)

	chain := c.Origins.Chain("train-iters")
	require.Len(t, chain, 2)
	assert.Equal(t, "a.json", chain[0].Source)
	assert.Equal(t, "b.json", chain[1].Source)

	_, stale := c.Origins.Winner("betas[2]")
	assert.False(t, stale)
	el, ok := c.Origins.Winner("betas[0]")
	require.True(t, ok)
	assert.Equal(t, "b.json", el.Source)
}

func TestTypeChangeReplacesSubtree(t *testing.T) {
	f := newFixture(t)
	a := f.frag("a.json", `{"fp16": {"enabled": true, "loss_scale": 0}}`, 0)
	b := f.frag("b.json", `{"fp16": null}`, 1)
	c := f.frag("c.json", `{"fp16": {"enabled": false}}`, 2)

	ab := merge.Merge(a, b)
	assert.True(t, lookup(t, ab, "fp16").IsNull())
	w, ok := ab.Origins.Winner("fp16")
	require.True(t, ok)
	assert.Equal(t, "replaced block with null", w.Note)
	_, ok = ab.Origins.Winner("fp16.enabled")
	assert.False(t, ok)

	abc := merge.Merge(a, b, c)
	fp16 := lookup(t, abc, "fp16").Block()
	require.NotNil(t, fp16)
	assert.Equal(t, []string{"enabled"}, fp16.Keys())
}

func TestMergeIsALeftFold(t *testing.T) {
	f := newFixture(t)
	a := f.frag("a.json", `{"hidden-size": 1024, "optimizer": {"type": "Adam", "params": {"lr": 0.1}}, "fp16": {"enabled": true}}`, 0)
	b := f.frag("b.json", `{"optimizer": {"params": {"lr": 0.2, "eps": 1e-8}}, "fp16": false, "seq-length": 2048}`, 1)
	c := f.frag("c.json", `{"optimizer.params.lr": 0.3, "fp16": {"loss_scale": 0}, "hidden-size": 2048}`, 2)

	all := merge.Merge(a, b, c)
	stepwise := merge.MergeConfigs(merge.Merge(a, b), merge.FromFragment(c))

	assert.True(t, all.Root.Equal(stepwise.Root))
	assert.Equal(t, all.Origins.Paths(), stepwise.Origins.Paths())
	for _, p := range all.Origins.Paths() {
		assert.Equal(t, all.Origins.Chain(p), stepwise.Origins.Chain(p), p)
	}
}

func TestInputsAreNotModified(t *testing.T) {
	f := newFixture(t)
	a := f.frag("a.json", `{"optimizer": {"params": {"lr": 0.1}}}`, 0)
	b := f.frag("b.json", `{"optimizer": {"params": {"lr": 0.2}}}`, 1)

	_ = merge.Merge(a, b)

	lr, _ := a.Root.Lookup(value.ParsePath("optimizer.params.lr"))
	got, _ := lr.FloatVal()
	assert.Equal(t, 0.1, got)
	assert.Len(t, a.Origins.Chain("optimizer.params.lr"), 1)
}

func TestUnsetKeysStayAbsent(t *testing.T) {
	c := merge.Merge()
	assert.Equal(t, 0, c.Root.Len())
	assert.Equal(t, 0, c.Origins.Len())
}
