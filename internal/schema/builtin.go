package schema

import (
	"fmt"
	"strconv"
	"strings"

	"trainplan/internal/value"
)

// LatestVersion is the schema used when none is requested.
const LatestVersion = "2.0"

var builtins = map[string]func() []*FieldSpec{
	"1.0": func() []*FieldSpec { return neoxFields(false) },
	"2.0": func() []*FieldSpec { return neoxFields(true) },
}

// neoxFields returns the GPT-NeoX/DeepSpeed keys; v2 adds bf16, ZeRO stage-3
// buckets, Lion, datasets and the extended tokenizer keys.
func neoxFields(v2 bool) []*FieldSpec {
	out := []*FieldSpec{
		// model shape
		field("num-layers", TypePositiveInteger, required(), doc("number of transformer layers")),
		field("hidden-size", TypePositiveInteger, required(), doc("transformer hidden size")),
		field("num-attention-heads", TypePositiveInteger, required(), doc("attention heads per layer")),
		field("seq-length", TypePositiveInteger, required(), doc("training sequence length")),
		field("max-position-embeddings", TypePositiveInteger, doc("upper bound for seq-length")),
		field("norm", TypeEnum, enum("layernorm", "rmsnorm", "scalenorm"), caseInsensitive(), defString("layernorm")),
		field("layernorm-epsilon", TypeFloat, above(0), defFloat(1e-5)),
		field("pos-emb", TypeEnum, enum("learned", "rotary", "sinusoidal", "rpe", "alibi", "none"), defString("learned")),
		field("rotary-pct", TypeFloat, above(0), atMost(1), defFloat(1.0)),
		field("no-weight-tying", TypeBool, defBool(false)),
		field("gpt-j-residual", TypeBool, defBool(false)),
		field("output-layer-parallelism", TypeEnum, enum("column", "row"), defString("column")),
		field("attention-config", TypeAny, doc("per-layer attention types, e.g. [[[\"global\"], 24]]")),
		field("sparsity-config", TypeAny),
		field("scaled-upper-triang-masked-softmax-fusion", TypeBool, defBool(false)),
		field("bias-gelu-fusion", TypeBool, defBool(false)),
		field("activation", TypeEnum, enum("gelu", "geglu", "relu", "softsign", "swish", "mish", "silu"), defString("gelu")),
		field("init-method", TypeEnum, enum(initMethods...), defString("normal")),
		field("output-layer-init-method", TypeEnum, enum(initMethods...), defString("scaled_normal")),
		field("hidden-dropout", TypeFloat, atLeast(0), atMost(1), defFloat(0)),
		field("attention-dropout", TypeFloat, atLeast(0), atMost(1), defFloat(0)),

		// parallelism
		field("pipe-parallel-size", TypeNonNegativeInteger, defInt(1), doc("pipeline stages; 0 disables the pipeline engine")),
		field("model-parallel-size", TypePositiveInteger, defInt(1), doc("tensor-parallel degree")),
		field("data-parallel-size", TypePositiveInteger, derived(), doc("devices / (pipe x model)")),

		// optimizer
		field("optimizer", TypeBlock, required(), fields(
			field("type", TypeEnum, required(), enum(optimizerTypes(v2)...), caseInsensitive()),
			field("params", TypeBlock, defBlock(), fields(
				field("lr", TypeFloat, required(), above(0)),
				field("betas", TypeFloatList, listLen(2), def(value.List(value.Float(0.9), value.Float(0.999))), predicate(betasInRange)),
				field("eps", TypeFloat, above(0), defFloat(1e-8)),
				field("momentum", TypeFloat, atLeast(0)),
				field("weight_decay", TypeFloat, atLeast(0)),
			)),
		)),
		field("min_lr", TypeFloat, atLeast(0), defFloat(0), aliases("min-lr")),
		field("lr-decay-style", TypeEnum, enum("constant", "linear", "cosine", "exponential"), defString("linear")),
		field("lr-decay-iters", TypePositiveInteger, doc("defaults to train-iters")),
		field("warmup", TypeFloat, atLeast(0), atMost(1), defFloat(0.01), doc("fraction of train-iters spent warming up")),
		field("warmup-iters", TypeNonNegativeInteger, derived()),
		field("weight-decay", TypeFloat, atLeast(0), defFloat(0)),
		field("gradient_clipping", TypeFloat, atLeast(0), defFloat(1.0), aliases("gradient-clipping")),

		// batch
		field("train_micro_batch_size_per_gpu", TypePositiveInteger, required(), aliases("train-micro-batch-size-per-gpu")),
		field("gradient_accumulation_steps", TypePositiveInteger, defInt(1), aliases("gradient-accumulation-steps")),
		field("train_batch_size", TypePositiveInteger, derived(), aliases("train-batch-size")),

		// precision
		field("fp16", TypeBlock, fields(
			field("enabled", TypeBool, defBool(false)),
			field("loss_scale", TypeFloat, atLeast(0), defFloat(0), doc("0 selects dynamic loss scaling")),
			field("loss_scale_window", TypeInteger, defInt(1000)),
			field("hysteresis", TypeInteger, defInt(2)),
			field("min_loss_scale", TypeFloat, defFloat(1)),
			field("initial_scale_power", TypeNonNegativeInteger, defInt(32)),
		)),
		field("precision", TypeEnum, enum("fp16", "bfloat16", "fp32"), derived()),

		// ZeRO
		field("zero_optimization", TypeBlock, defBlock(), fields(zeroFields(v2)...)),

		// schedule
		field("train-iters", TypePositiveInteger, required()),
		field("save-interval", TypeInteger),
		field("eval-interval", TypeInteger),
		field("eval-iters", TypeNonNegativeInteger, defInt(100)),
		field("log-interval", TypePositiveInteger, defInt(100)),
		field("steps_per_print", TypePositiveInteger, defInt(10)),
		field("keep-last-n-checkpoints", TypePositiveInteger),
		field("optimizer-steps", TypeNonNegativeInteger, derived()),
		field("micro-steps", TypeNonNegativeInteger, derived()),
		field("checkpoint-count", TypeNonNegativeInteger, derived()),
		field("train-samples", TypeNonNegativeInteger, derived()),
		field("train-tokens", TypeNonNegativeInteger, derived()),

		// checkpointing and runtime
		field("save", TypeString),
		field("load", TypeString),
		field("checkpoint-activations", TypeBool, defBool(false)),
		field("checkpoint-num-layers", TypePositiveInteger, defInt(1)),
		field("partition-activations", TypeBool, defBool(false)),
		field("synchronize-each-layer", TypeBool, defBool(false)),
		field("wall_clock_breakdown", TypeBool, defBool(false)),
		field("distributed-backend", TypeEnum, enum("nccl", "gloo", "mpi"), defString("nccl")),
		field("seed", TypeInteger, defInt(1234)),

		// data
		field("data-path", TypeString),
		field("data-impl", TypeEnum, enum("lazy", "cached", "mmap"), defString("mmap")),
		field("split", TypeString, defString("969,30,1"), predicate(splitWeights)),
		field("tokenizer-type", TypeEnum, enum(tokenizerTypes(v2)...)),
		field("vocab-file", TypeString),
		field("merge-file", TypeString),
	}

	if v2 {
		out = append(out,
			field("bf16", TypeBlock, since("2.0"), fields(
				field("enabled", TypeBool, defBool(false)),
			)),
			field("make-vocab-size-divisible-by", TypePositiveInteger, defInt(128), since("2.0")),
			field("datasets", TypeBlockList, since("2.0"), item(
				field("path", TypeString, required()),
				field("weight", TypeFloat, atLeast(0), defFloat(1.0)),
				field("split", TypeEnum, enum("train", "valid", "test"), defString("train")),
			)),
		)
	}
	return out
}

var initMethods = []string{"normal", "scaled_normal", "orthogonal", "scaled_orthogonal", "xavier_uniform", "xavier_normal", "wang_init", "small_init"}

func optimizerTypes(v2 bool) []string {
	t := []string{"Adam", "OneBitAdam", "CPU_Adam", "SM3", "madgrad_wd", "sgd"}
	if v2 {
		t = append(t, "Lion")
	}
	return t
}

func tokenizerTypes(v2 bool) []string {
	if !v2 {
		return []string{"GPT2BPETokenizer", "HFTokenizer"}
	}
	return []string{"HFGPT2Tokenizer", "SPMTokenizer", "HFTokenizer", "GPT2BPETokenizer", "CharLevelTokenizer"}
}

func zeroFields(v2 bool) []*FieldSpec {
	maxStage := 2.0
	if v2 {
		maxStage = 3
	}
	out := []*FieldSpec{
		field("stage", TypeNonNegativeInteger, atMost(maxStage), defInt(0)),
		field("allgather_partitions", TypeBool, defBool(true)),
		field("allgather_bucket_size", TypeIntOrAuto, defInt(500000000)),
		field("overlap_comm", TypeBool, defBool(false)),
		field("reduce_scatter", TypeBool, defBool(true)),
		field("reduce_bucket_size", TypeIntOrAuto, defInt(500000000)),
		field("contiguous_gradients", TypeBool, defBool(false)),
		field("cpu_offload", TypeBool, defBool(false)),
	}
	if v2 {
		out = append(out,
			field("stage3_prefetch_bucket_size", TypeIntOrAuto, since("2.0")),
			field("stage3_param_persistence_threshold", TypeIntOrAuto, since("2.0")),
			field("stage3_max_live_parameters", TypePositiveInteger, since("2.0")),
		)
	}
	return out
}

func betasInRange(v value.Value) error {
	for i, b := range v.Items() {
		f, _ := b.FloatVal()
		if f < 0 || f >= 1 {
			return fmt.Errorf("betas[%d] = %s must be in [0, 1)", i, value.FormatFloat(f))
		}
	}
	return nil
}

// splitWeights accepts "train,valid,test" with three non-negative numbers.
func splitWeights(v value.Value) error {
	s, _ := v.StringVal()
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("split %q must have three comma-separated weights", s)
	}
	sum := 0.0
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return fmt.Errorf("split weight %q is not a non-negative number", strings.TrimSpace(p))
		}
		sum += f
	}
	if sum <= 0 {
		return fmt.Errorf("split %q has no positive weight", s)
	}
	return nil
}
