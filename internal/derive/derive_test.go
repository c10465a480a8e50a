package derive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainplan/internal/derive"
	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/provenance"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

func config(t *testing.T, m map[string]any) *merge.Config {
	t.Helper()
	v, err := value.FromAny(m)
	require.NoError(t, err)
	return &merge.Config{Root: v.Block(), Origins: provenance.Empty}
}

func base() map[string]any {
	return map[string]any{
		"hidden-size":                    1024,
		"seq-length":                     2048,
		"pipe-parallel-size":             1,
		"model-parallel-size":            1,
		"train_micro_batch_size_per_gpu": 8,
		"gradient_accumulation_steps":    4,
		"train-iters":                    100,
		"warmup":                         0.01,
		"save-interval":                  30,
		"fp16":                           map[string]any{"enabled": false},
		"zero_optimization": map[string]any{
			"stage":                              1,
			"reduce_bucket_size":                 "auto",
			"allgather_bucket_size":              500000000,
			"stage3_prefetch_bucket_size":        "auto",
			"stage3_param_persistence_threshold": "auto",
		},
	}
}

func intAt(t *testing.T, c *merge.Config, path string) int64 {
	t.Helper()
	v, ok := c.Root.Lookup(value.ParsePath(path))
	require.True(t, ok, "missing %s", path)
	n, ok := v.IntVal()
	require.True(t, ok, "%s is %s", path, v.Kind())
	return n
}

func TestDeriveGlobalBatch(t *testing.T) {
	out, ok := derive.Derive(config(t, base()), topology.Topology{Devices: 2}, nil)
	require.True(t, ok)

	assert.EqualValues(t, 2, intAt(t, out, "data-parallel-size"))
	assert.EqualValues(t, 64, intAt(t, out, "train_batch_size"))
	assert.EqualValues(t, 100, intAt(t, out, "lr-decay-iters"))
	assert.EqualValues(t, 1, intAt(t, out, "warmup-iters"))
	assert.EqualValues(t, 100, intAt(t, out, "optimizer-steps"))
	assert.EqualValues(t, 400, intAt(t, out, "micro-steps"))
	assert.EqualValues(t, 3, intAt(t, out, "checkpoint-count"))
	assert.EqualValues(t, 6400, intAt(t, out, "train-samples"))
	assert.EqualValues(t, 6400*2048, intAt(t, out, "train-tokens"))

	p, _ := out.Root.Get("precision")
	s, _ := p.StringVal()
	assert.Equal(t, "fp32", s)

	o, ok := out.Origins.Winner("train_batch_size")
	require.True(t, ok)
	assert.Equal(t, provenance.FromDerived, o.Kind)
	assert.Contains(t, o.Note, "gradient_accumulation_steps")
}

func TestDeriveZeroAutoBuckets(t *testing.T) {
	out, ok := derive.Derive(config(t, base()), topology.Topology{Devices: 1}, nil)
	require.True(t, ok)
	assert.EqualValues(t, 1048576, intAt(t, out, "zero_optimization.reduce_bucket_size"))
	assert.EqualValues(t, 500000000, intAt(t, out, "zero_optimization.allgather_bucket_size"))
	assert.EqualValues(t, 943718, intAt(t, out, "zero_optimization.stage3_prefetch_bucket_size"))
	assert.EqualValues(t, 10240, intAt(t, out, "zero_optimization.stage3_param_persistence_threshold"))

	_, derived := out.Origins.Winner("zero_optimization.allgather_bucket_size")
	assert.False(t, derived, "explicit sizes keep their provenance")
}

func TestDeriveIsIdempotent(t *testing.T) {
	topo := topology.Topology{Devices: 4}
	once, ok := derive.Derive(config(t, base()), topo, nil)
	require.True(t, ok)
	twice, ok := derive.Derive(once, topo, nil)
	require.True(t, ok)

	assert.True(t, once.Root.Equal(twice.Root))
	for _, p := range once.Origins.Paths() {
		assert.Equal(t, once.Origins.Chain(p), twice.Origins.Chain(p), p)
	}
}

func TestDeriveRecomputesInsteadOfAccumulating(t *testing.T) {
	m := base()
	m["train_batch_size"] = 9999
	m["checkpoint-count"] = 7
	delete(m, "save-interval")

	out, ok := derive.Derive(config(t, m), topology.Topology{Devices: 2}, nil)
	require.True(t, ok)
	assert.EqualValues(t, 64, intAt(t, out, "train_batch_size"))
	_, stale := out.Root.Get("checkpoint-count")
	assert.False(t, stale)
}

func TestExplicitDecayIsKept(t *testing.T) {
	m := base()
	m["lr-decay-iters"] = 80
	out, ok := derive.Derive(config(t, m), topology.Topology{Devices: 1}, nil)
	require.True(t, ok)
	assert.EqualValues(t, 80, intAt(t, out, "lr-decay-iters"))
}

func TestPrecision(t *testing.T) {
	m := base()
	m["bf16"] = map[string]any{"enabled": true}
	out, ok := derive.Derive(config(t, m), topology.Topology{Devices: 1}, nil)
	require.True(t, ok)
	p, _ := out.Root.Get("precision")
	s, _ := p.StringVal()
	assert.Equal(t, "bfloat16", s)
}

func TestDerivationErrors(t *testing.T) {
	m := base()
	delete(m, "train-iters")
	m["model-parallel-size"] = 2

	rep := &diag.SliceReporter{}
	_, ok := derive.Derive(config(t, m), topology.Topology{Devices: 3}, rep)
	assert.False(t, ok)
	require.NotEmpty(t, rep.Items)

	var codes []diag.Code
	for _, d := range rep.Items {
		assert.Equal(t, diag.SevError, d.Severity)
		assert.Equal(t, "DerivationError", d.Code.Class())
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, diag.DrvMissingInput)
	assert.Contains(t, codes, diag.DrvInvariant)

	var e derive.Error
	e.Code, e.Key, e.Msg = diag.DrvOverflow, "train-tokens", "boom"
	assert.Equal(t, "DRV4002 train-tokens: boom", e.Error())
}

func TestDerivationOverflow(t *testing.T) {
	m := base()
	m["train-iters"] = int64(1) << 40
	m["save-interval"] = 1
	m["seq-length"] = int64(1) << 30

	rep := &diag.SliceReporter{}
	_, ok := derive.Derive(config(t, m), topology.Topology{Devices: 1}, rep)
	assert.False(t, ok)
	require.Len(t, rep.Items, 1)
	assert.Equal(t, diag.DrvOverflow, rep.Items[0].Code)
	assert.Equal(t, "train-tokens", rep.Items[0].Key)
}

func TestWarmupIters(t *testing.T) {
	assert.EqualValues(t, 29, derive.WarmupIters(0.29, 100))
	assert.EqualValues(t, 1, derive.WarmupIters(0.01, 100))
	assert.EqualValues(t, 0, derive.WarmupIters(0.001, 100))
	assert.EqualValues(t, 3, derive.WarmupIters(0.035, 100))
	assert.EqualValues(t, 943718, derive.PrefetchBucket(1048576))
}
