package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/provenance"
	"trainplan/internal/rules"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

func valid() map[string]any {
	return map[string]any{
		"num-layers":                     24,
		"hidden-size":                    2048,
		"num-attention-heads":            16,
		"seq-length":                     2048,
		"max-position-embeddings":        2048,
		"pipe-parallel-size":             1,
		"model-parallel-size":            2,
		"train_micro_batch_size_per_gpu": 8,
		"gradient_accumulation_steps":    4,
		"train-iters":                    50000,
		"lr-decay-iters":                 50000,
		"warmup":                         0.01,
		"min_lr":                         0.00001,
		"save-interval":                  1000,
		"eval-interval":                  1000,
		"optimizer":                      map[string]any{"type": "Adam", "params": map[string]any{"lr": 0.0001}},
		"fp16":                           map[string]any{"enabled": true, "loss_scale_window": 1000, "hysteresis": 2, "min_loss_scale": 1.0},
		"zero_optimization":              map[string]any{"stage": 1},
	}
}

func check(t *testing.T, m map[string]any, devices int64) ([]diag.Diagnostic, bool) {
	t.Helper()
	v, err := value.FromAny(m)
	require.NoError(t, err)
	cfg := &merge.Config{Root: v.Block(), Origins: provenance.Empty}
	rep := &diag.SliceReporter{}
	ok := rules.Builtin().Check(cfg, topology.Topology{Devices: devices}, rep)
	return rep.Items, ok
}

func byRule(items []diag.Diagnostic) map[string][]diag.Diagnostic {
	out := map[string][]diag.Diagnostic{}
	for _, d := range items {
		out[d.Rule] = append(out[d.Rule], d)
	}
	return out
}

func TestValidConfigPasses(t *testing.T) {
	items, ok := check(t, valid(), 4)
	assert.Empty(t, items)
	assert.True(t, ok)
}

func TestBuiltinRegistry(t *testing.T) {
	r := rules.Builtin()
	assert.Equal(t, 17, r.Len())

	names := map[string]bool{}
	for _, rule := range r.Rules() {
		names[rule.Name()] = true
	}
	for _, n := range []string{"heads-divide-hidden", "model-parallel-split", "device-topology", "global-batch", "warmup-window"} {
		assert.True(t, names[n], n)
	}
	assert.Error(t, r.Register(rules.New("min-lr", func(*rules.Context) []diag.Diagnostic { return nil })))
}

func TestHeadsMustDivideHidden(t *testing.T) {
	m := valid()
	m["num-attention-heads"] = 12
	m["model-parallel-size"] = 1
	items, ok := check(t, m, 4)
	assert.False(t, ok)

	got := byRule(items)["heads-divide-hidden"]
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, diag.CnsDivisibility, d.Code)
	assert.Equal(t, "ConsistencyError", d.Code.Class())
	assert.Equal(t, "hidden-size", d.Key)
	assert.Contains(t, d.Message, "hidden-size")
	assert.Contains(t, d.Message, "num-attention-heads")
	require.Len(t, d.Notes, 1)
	assert.Equal(t, "num-attention-heads = 12", d.Notes[0].Msg)
}

func TestModelParallelMustDivideHidden(t *testing.T) {
	m := valid()
	m["hidden-size"] = 2050
	m["num-attention-heads"] = 10
	m["model-parallel-size"] = 4
	items, ok := check(t, m, 8)
	assert.False(t, ok)

	got := byRule(items)["model-parallel-split"]
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Contains(t, d.Message, "model-parallel-size")
	}
	assert.Contains(t, got[0].Message, "hidden-size")
	assert.Contains(t, got[1].Message, "num-attention-heads")
	assert.Len(t, byRule(items)["heads-divide-hidden"], 0)
}

func TestDecayWindowExceedsTraining(t *testing.T) {
	m := valid()
	m["lr-decay-iters"] = 60000
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	got := byRule(items)["lr-decay-window"]
	require.Len(t, got, 1)
	assert.Equal(t, diag.CnsOrdering, got[0].Code)
	assert.Equal(t, "60000", got[0].Value)
}

func TestAllRulesRunDespiteFailures(t *testing.T) {
	m := valid()
	m["hidden-size"] = 2049
	m["lr-decay-iters"] = 60000
	m["min_lr"] = 0.1
	m["save-interval"] = 0
	m["eval-interval"] = 60000
	m["seq-length"] = 4096
	m["bf16"] = map[string]any{"enabled": true}
	m["fp16"] = map[string]any{"enabled": true, "loss_scale_window": 0, "hysteresis": -1, "min_loss_scale": 0.5}

	items, ok := check(t, m, 4)
	assert.False(t, ok)
	got := byRule(items)
	for _, name := range []string{
		"heads-divide-hidden", "model-parallel-split", "lr-decay-window", "min-lr",
		"save-interval", "eval-interval", "seq-length", "precision-exclusive",
	} {
		assert.NotEmpty(t, got[name], name)
	}
	assert.Len(t, got["loss-scale"], 3)
}

func TestTopology(t *testing.T) {
	m := valid()
	m["pipe-parallel-size"] = 2
	items, ok := check(t, m, 6)
	assert.False(t, ok)
	got := byRule(items)["device-topology"]
	require.Len(t, got, 1)
	assert.Equal(t, diag.CnsTopology, got[0].Code)
	assert.Equal(t, "pipe-parallel-size", got[0].Key)

	items, ok = check(t, m, 2)
	assert.False(t, ok)
	assert.Len(t, byRule(items)["device-topology"], 1)
	assert.Empty(t, byRule(items)["global-batch"], "no batch check without a valid degree")
}

func TestTopologyGroupOverflow(t *testing.T) {
	m := valid()
	m["pipe-parallel-size"] = int64(1) << 62
	m["model-parallel-size"] = 4
	var items []diag.Diagnostic
	var ok bool
	require.NotPanics(t, func() { items, ok = check(t, m, 8) })
	assert.False(t, ok)
	got := byRule(items)["device-topology"]
	require.Len(t, got, 1)
	assert.Equal(t, diag.CnsTopology, got[0].Code)
	assert.Contains(t, got[0].Message, "not a positive 64-bit integer")
	assert.Empty(t, byRule(items)["global-batch"])
}

func TestGlobalBatch(t *testing.T) {
	m := valid()
	m["model-parallel-size"] = 1
	m["train_batch_size"] = 64
	items, ok := check(t, m, 2)
	assert.True(t, ok, "%v", items)

	m["train_batch_size"] = 128
	items, ok = check(t, m, 2)
	assert.False(t, ok)
	got := byRule(items)["global-batch"]
	require.Len(t, got, 1)
	assert.Equal(t, diag.CnsBatchSize, got[0].Code)
	assert.Contains(t, got[0].Message, "= 64")
}

func TestSuppliedDataParallelSize(t *testing.T) {
	m := valid()
	m["data-parallel-size"] = 4
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	assert.Len(t, byRule(items)["data-parallel-size"], 1)

	m["data-parallel-size"] = 2
	_, ok = check(t, m, 4)
	assert.True(t, ok)
}

func TestPipelineLayersIsAWarning(t *testing.T) {
	m := valid()
	m["num-layers"] = 25
	m["pipe-parallel-size"] = 2
	items, ok := check(t, m, 4)
	assert.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, diag.SevWarning, items[0].Severity)
	assert.Equal(t, "pipeline-layers", items[0].Rule)
}

func TestZeroWithPipeline(t *testing.T) {
	m := valid()
	m["pipe-parallel-size"] = 2
	m["zero_optimization"] = map[string]any{"stage": 2}
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	assert.Len(t, byRule(items)["zero-pipeline"], 1)
}

func TestTokenizerFiles(t *testing.T) {
	m := valid()
	m["tokenizer-type"] = "GPT2BPETokenizer"
	m["vocab-file"] = "gpt2-vocab.json"
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	got := byRule(items)["tokenizer-files"]
	require.Len(t, got, 1)
	assert.Equal(t, "merge-file", got[0].Key)

	m["tokenizer-type"] = "HFTokenizer"
	_, ok = check(t, m, 4)
	assert.True(t, ok)
}

func TestDatasetWeights(t *testing.T) {
	m := valid()
	m["datasets"] = []any{
		map[string]any{"path": "a", "weight": 0.0},
		map[string]any{"path": "b", "weight": 0.0},
	}
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	assert.Len(t, byRule(items)["dataset-weights"], 1)
}

func TestWarmupWindow(t *testing.T) {
	m := valid()
	m["warmup"] = 0.5
	m["lr-decay-iters"] = 20000
	items, ok := check(t, m, 4)
	assert.False(t, ok)
	got := byRule(items)["warmup-window"]
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "25000 warmup iterations")
}

func TestCustomRule(t *testing.T) {
	r := rules.NewRegistry()
	require.NoError(t, r.Register(rules.New("even-layers", func(c *rules.Context) []diag.Diagnostic {
		if n, ok := c.Int("num-layers"); ok && n%2 != 0 {
			return []diag.Diagnostic{c.Advice(diag.CnsAdvisory, "num-layers", "odd layer count")}
		}
		return nil
	})))
	m := valid()
	m["num-layers"] = 3
	v, err := value.FromAny(m)
	require.NoError(t, err)
	rep := &diag.SliceReporter{}
	ok := r.Check(&merge.Config{Root: v.Block(), Origins: provenance.Empty}, topology.Topology{Devices: 1}, rep)
	assert.True(t, ok)
	require.Len(t, rep.Items, 1)
	assert.Equal(t, "even-layers", rep.Items[0].Rule)
	assert.Equal(t, "3", rep.Items[0].Value)
}
