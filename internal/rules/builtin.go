package rules

import (
	"fmt"

	"trainplan/internal/derive"
	"trainplan/internal/diag"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

const (
	keyHidden    = "hidden-size"
	keyHeads     = "num-attention-heads"
	keyLayers    = "num-layers"
	keyPipe      = "pipe-parallel-size"
	keyModel     = "model-parallel-size"
	keyData      = "data-parallel-size"
	keyMicro     = "train_micro_batch_size_per_gpu"
	keyAccum     = "gradient_accumulation_steps"
	keyBatch     = "train_batch_size"
	keyIters     = "train-iters"
	keyDecay     = "lr-decay-iters"
	keyWarmup    = "warmup"
	keyLR        = "optimizer.params.lr"
	keyMinLR     = "min_lr"
	keySave      = "save-interval"
	keyEval      = "eval-interval"
	keySeq       = "seq-length"
	keyMaxPos    = "max-position-embeddings"
	keyZeroStage = "zero_optimization.stage"
	keyTokenizer = "tokenizer-type"
	keyVocab     = "vocab-file"
	keyMerges    = "merge-file"
	keyDatasets  = "datasets"
)

func builtinRules() []Rule {
	return []Rule{
		New("heads-divide-hidden", headsDivideHidden),
		New("model-parallel-split", modelParallelSplit),
		New("device-topology", deviceTopology),
		New("global-batch", globalBatch),
		New("data-parallel-size", dataParallelSize),
		New("min-lr", minLR),
		New("lr-decay-window", lrDecayWindow),
		New("save-interval", interval(keySave)),
		New("eval-interval", interval(keyEval)),
		New("loss-scale", lossScale),
		New("precision-exclusive", precisionExclusive),
		New("seq-length", seqLength),
		New("zero-pipeline", zeroPipeline),
		New("pipeline-layers", pipelineLayers),
		New("tokenizer-files", tokenizerFiles),
		New("dataset-weights", datasetWeights),
		New("warmup-window", warmupWindow),
	}
}

func headsDivideHidden(c *Context) []diag.Diagnostic {
	h, ok1 := c.Int(keyHidden)
	n, ok2 := c.Int(keyHeads)
	if !ok1 || !ok2 || n <= 0 || h%n == 0 {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsDivisibility, keyHidden,
		fmt.Sprintf("%s must be divisible by %s", c.named(keyHidden), c.named(keyHeads)), keyHeads)}
}

// tensor parallelism shards both the hidden dimension and the heads
func modelParallelSplit(c *Context) []diag.Diagnostic {
	mp, ok := c.Int(keyModel)
	if !ok || mp <= 1 {
		return nil
	}
	var out []diag.Diagnostic
	for _, k := range []string{keyHidden, keyHeads} {
		if n, ok := c.Int(k); ok && n%mp != 0 {
			out = append(out, c.Violation(diag.CnsDivisibility, k,
				fmt.Sprintf("%s must be divisible by %s", c.named(k), c.named(keyModel)), keyModel))
		}
	}
	return out
}

func deviceTopology(c *Context) []diag.Diagnostic {
	pipe, _ := c.Int(keyPipe)
	mp, ok := c.Int(keyModel)
	if !ok {
		mp = 1
	}
	anchor := keyModel
	if pipe > 1 {
		anchor = keyPipe
	}
	devices := c.Topology.Devices
	group, ok := topology.ModelGroup(pipe, mp)
	switch {
	case !ok:
		return []diag.Diagnostic{c.Violation(diag.CnsTopology, anchor,
			fmt.Sprintf("model replica size %s x %s is not a positive 64-bit integer",
				c.named(keyPipe), c.named(keyModel)), keyPipe, keyModel)}
	case group > devices:
		return []diag.Diagnostic{c.Violation(diag.CnsTopology, anchor,
			fmt.Sprintf("one model replica needs %d devices (%s x %s) but only %d are available",
				group, c.named(keyPipe), c.named(keyModel), devices), keyPipe, keyModel)}
	case devices%group != 0:
		return []diag.Diagnostic{c.Violation(diag.CnsTopology, anchor,
			fmt.Sprintf("%d devices cannot be split into groups of %d (%s x %s)",
				devices, group, c.named(keyPipe), c.named(keyModel)), keyPipe, keyModel)}
	}
	return nil
}

func globalBatch(c *Context) []diag.Diagnostic {
	dp, ok := c.DataParallel()
	if !ok {
		// reported by device-topology
		return nil
	}
	micro, ok1 := c.Int(keyMicro)
	accum, ok2 := c.Int(keyAccum)
	if !ok1 || !ok2 {
		return nil
	}
	global, fits := value.MulInt(micro, accum, dp)
	if !fits || global <= 0 {
		return []diag.Diagnostic{c.Violation(diag.CnsBatchSize, keyMicro,
			fmt.Sprintf("global batch size %s x %s x data-parallel degree %d is not a positive 64-bit integer",
				c.named(keyMicro), c.named(keyAccum), dp), keyAccum)}
	}
	if got, ok := c.Int(keyBatch); ok && got != global {
		return []diag.Diagnostic{c.Violation(diag.CnsBatchSize, keyBatch,
			fmt.Sprintf("%q is %d but %s x %s x data-parallel degree %d = %d",
				keyBatch, got, c.named(keyMicro), c.named(keyAccum), dp, global), keyMicro, keyAccum)}
	}
	return nil
}

func dataParallelSize(c *Context) []diag.Diagnostic {
	got, ok := c.Int(keyData)
	if !ok {
		return nil
	}
	dp, fits := c.DataParallel()
	if !fits || got == dp {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsTopology, keyData,
		fmt.Sprintf("%q is %d but %s implies %d", keyData, got, c.Topology, dp), keyPipe, keyModel)}
}

func minLR(c *Context) []diag.Diagnostic {
	lo, ok1 := c.Float(keyMinLR)
	lr, ok2 := c.Float(keyLR)
	if !ok1 || !ok2 || lo <= lr {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsOrdering, keyMinLR,
		fmt.Sprintf("%s must not exceed %s", c.named(keyMinLR), c.named(keyLR)), keyLR)}
}

func lrDecayWindow(c *Context) []diag.Diagnostic {
	decay, ok1 := c.Int(keyDecay)
	iters, ok2 := c.Int(keyIters)
	if !ok1 || !ok2 || decay <= iters {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsOrdering, keyDecay,
		fmt.Sprintf("%s exceeds the training length %s", c.named(keyDecay), c.named(keyIters)), keyIters)}
}

func interval(key string) func(*Context) []diag.Diagnostic {
	return func(c *Context) []diag.Diagnostic {
		n, ok := c.Int(key)
		if !ok {
			return nil
		}
		if n <= 0 {
			return []diag.Diagnostic{c.Violation(diag.CnsInterval, key,
				fmt.Sprintf("%s must be positive", c.named(key)))}
		}
		if iters, ok := c.Int(keyIters); ok && n > iters {
			return []diag.Diagnostic{c.Violation(diag.CnsInterval, key,
				fmt.Sprintf("%s exceeds %s", c.named(key), c.named(keyIters)), keyIters)}
		}
		return nil
	}
}

func lossScale(c *Context) []diag.Diagnostic {
	if !c.Bool("fp16.enabled") {
		return nil
	}
	var out []diag.Diagnostic
	for _, k := range []string{"fp16.loss_scale_window", "fp16.hysteresis"} {
		if n, ok := c.Int(k); ok && n <= 0 {
			out = append(out, c.Violation(diag.CnsPrecision, k,
				fmt.Sprintf("%s must be a positive integer when fp16 is enabled", c.named(k)), "fp16.enabled"))
		}
	}
	if m, ok := c.Float("fp16.min_loss_scale"); ok && m < 1 {
		out = append(out, c.Violation(diag.CnsPrecision, "fp16.min_loss_scale",
			fmt.Sprintf("%s must be at least 1 when fp16 is enabled", c.named("fp16.min_loss_scale")), "fp16.enabled"))
	}
	return out
}

func precisionExclusive(c *Context) []diag.Diagnostic {
	if !c.Bool("fp16.enabled") || !c.Bool("bf16.enabled") {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsPrecision, "bf16.enabled",
		"fp16 and bf16 cannot both be enabled", "fp16.enabled")}
}

func seqLength(c *Context) []diag.Diagnostic {
	seq, ok1 := c.Int(keySeq)
	mpe, ok2 := c.Int(keyMaxPos)
	if !ok1 || !ok2 || seq <= mpe {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsOrdering, keySeq,
		fmt.Sprintf("%s exceeds %s", c.named(keySeq), c.named(keyMaxPos)), keyMaxPos)}
}

func zeroPipeline(c *Context) []diag.Diagnostic {
	stage, ok := c.Int(keyZeroStage)
	pipe, _ := c.Int(keyPipe)
	if !ok || stage < 2 || pipe <= 1 {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsIncompatible, keyZeroStage,
		fmt.Sprintf("ZeRO %s partitions gradients and cannot be combined with %s", c.named(keyZeroStage), c.named(keyPipe)), keyPipe)}
}

func pipelineLayers(c *Context) []diag.Diagnostic {
	pipe, ok1 := c.Int(keyPipe)
	layers, ok2 := c.Int(keyLayers)
	if !ok1 || !ok2 || pipe <= 1 || layers%pipe == 0 {
		return nil
	}
	return []diag.Diagnostic{c.Advice(diag.CnsAdvisory, keyLayers,
		fmt.Sprintf("%s is not divisible by %s; pipeline stages will be unbalanced", c.named(keyLayers), c.named(keyPipe)), keyPipe)}
}

func tokenizerFiles(c *Context) []diag.Diagnostic {
	typ, ok := c.String(keyTokenizer)
	if !ok {
		return nil
	}
	var need []string
	switch typ {
	case "GPT2BPETokenizer":
		need = []string{keyVocab, keyMerges}
	case "SPMTokenizer", "HFTokenizer":
		need = []string{keyVocab}
	}
	var out []diag.Diagnostic
	for _, k := range need {
		if !c.Has(k) {
			out = append(out, c.Violation(diag.CnsMissingDependency, k,
				fmt.Sprintf("%q is required by %s", k, c.named(keyTokenizer)), keyTokenizer))
		}
	}
	return out
}

func datasetWeights(c *Context) []diag.Diagnostic {
	v, ok := c.Value(keyDatasets)
	if !ok || len(v.Items()) == 0 {
		return nil
	}
	for _, it := range v.Items() {
		if b := it.Block(); b != nil {
			if w, ok := b.Get("weight"); ok {
				if f, _ := w.FloatVal(); f > 0 {
					return nil
				}
			}
		}
	}
	return []diag.Diagnostic{c.Violation(diag.CnsDatasetMix, keyDatasets,
		fmt.Sprintf("none of the %d datasets has a positive weight", len(v.Items())))}
}

func warmupWindow(c *Context) []diag.Diagnostic {
	ratio, ok1 := c.Float(keyWarmup)
	iters, ok2 := c.Int(keyIters)
	if !ok1 || !ok2 {
		return nil
	}
	decay, ok := c.Int(keyDecay)
	if !ok {
		decay = iters
	}
	warm := derive.WarmupIters(ratio, iters)
	if warm <= decay {
		return nil
	}
	return []diag.Diagnostic{c.Violation(diag.CnsOrdering, keyWarmup,
		fmt.Sprintf("%d warmup iterations (%s x %s) exceed the decay window of %d", warm, c.named(keyWarmup), c.named(keyIters), decay),
		keyIters, keyDecay)}
}
