// Package derive computes the values a plan implies but its fragments do
// not state. Derivation is pure and idempotent: every derived key is
// recomputed from its inputs, never accumulated.
package derive

import (
	"errors"
	"fmt"

	"trainplan/internal/diag"
	"trainplan/internal/merge"
	"trainplan/internal/provenance"
	"trainplan/internal/source"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

// Error is a derivation failure. Earlier stages should make it
// unreachable, so it always indicates a bug.
type Error struct {
	Code diag.Code
	Key  string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Code.ID(), e.Key, e.Msg)
}

// Diagnostic converts e for reporting.
func (e *Error) Diagnostic() diag.Diagnostic {
	return diag.NewError(e.Code, source.NoSpan, e.Msg).WithKey(e.Key)
}

// outcome tells Derive what to do with a step's key.
type outcome uint8

const (
	absent   outcome = iota // inputs missing: the key must not exist
	keep                    // an explicit input value stays as is
	computed                // the returned value replaces the key
)

type step struct {
	key  string
	note string
	fn   func(s *state) (value.Value, outcome, error)
}

var steps = []step{
	{"data-parallel-size", "devices / (max(1, pipe-parallel-size) x model-parallel-size)", dataParallel},
	{"train_batch_size", "train_micro_batch_size_per_gpu x gradient_accumulation_steps x data-parallel-size", trainBatch},
	{"lr-decay-iters", "train-iters", decayIters},
	{"warmup-iters", "floor(warmup x train-iters)", warmupIters},
	{"optimizer-steps", "train-iters", optimizerSteps},
	{"micro-steps", "train-iters x gradient_accumulation_steps", microSteps},
	{"checkpoint-count", "floor(train-iters / save-interval)", checkpointCount},
	{"train-samples", "train-iters x train_batch_size", trainSamples},
	{"train-tokens", "train-samples x seq-length", trainTokens},
	{"precision", "fp16.enabled / bf16.enabled", precision},
	zeroStep("reduce_bucket_size", "hidden-size^2", hiddenSquared),
	zeroStep("allgather_bucket_size", "hidden-size^2", hiddenSquared),
	zeroStep("stage3_prefetch_bucket_size", "floor(0.9 x hidden-size^2)", prefetch),
	zeroStep("stage3_param_persistence_threshold", "10 x hidden-size", persistence),
}

// Derive returns cfg with every derived key (re)computed. Failures are
// reported as DRV errors and make ok false.
func Derive(cfg *merge.Config, topo topology.Topology, rep diag.Reporter) (out *merge.Config, ok bool) {
	s := &state{
		root: cfg.Root,
		src:  cfg.Origins,
		prov: provenance.NewBuilder(cfg.Origins),
		topo: topo,
	}
	ok = true
	for _, st := range steps {
		v, res, err := st.fn(s)
		if err != nil {
			ok = false
			if rep != nil {
				rep.Report(asError(st.key, err).Diagnostic())
			}
			continue
		}
		path := value.ParsePath(st.key)
		switch res {
		case absent:
			s.drop(path)
		case computed:
			s.set(path, v, st.note)
		}
	}
	return &merge.Config{Root: s.root, Origins: s.prov.Build()}, ok
}

func asError(key string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Key == "" {
			e.Key = key
		}
		return e
	}
	return &Error{Code: diag.DrvInvariant, Key: key, Msg: err.Error()}
}

type state struct {
	root *value.Block
	src  *provenance.Map
	prov *provenance.Builder
	topo topology.Topology
}

func (s *state) wasDerived(key string) bool {
	o, ok := s.src.Winner(key)
	return ok && o.Kind == provenance.FromDerived
}

// explicit reports whether key holds a value that did not come from an
// earlier derivation.
func (s *state) explicit(key string) bool {
	_, ok := s.get(key)
	return ok && !s.wasDerived(key)
}

func (s *state) get(key string) (value.Value, bool) {
	v, ok := s.root.Lookup(value.ParsePath(key))
	if !ok || v.IsNull() {
		return value.Null(), false
	}
	return v, true
}

func (s *state) optInt(key string) (int64, bool) {
	v, ok := s.get(key)
	if !ok {
		return 0, false
	}
	return v.IntVal()
}

// int requires key to be set; validated configs always have it.
func (s *state) int(key string) (int64, error) {
	n, ok := s.optInt(key)
	if !ok {
		return 0, &Error{Code: diag.DrvMissingInput, Msg: fmt.Sprintf("input %q is not set", key)}
	}
	return n, nil
}

func (s *state) mul(what string, xs ...int64) (int64, error) {
	p, ok := value.MulInt(xs...)
	if !ok {
		return 0, &Error{Code: diag.DrvOverflow, Msg: fmt.Sprintf("%s overflows a 64-bit integer", what)}
	}
	return p, nil
}

func (s *state) set(path value.Path, v value.Value, note string) {
	if old, ok := s.root.Lookup(path); ok && old.Equal(v) && s.wasDerived(path.String()) {
		return
	}
	s.root = s.root.SetPath(path, v)
	s.prov.Append(path.String(), provenance.Origin{
		Kind:    provenance.FromDerived,
		Span:    source.NoSpan,
		KeySpan: source.NoSpan,
		Value:   v.Render(),
		Note:    note,
	})
}

// drop removes a derived key whose inputs are absent.
func (s *state) drop(path value.Path) {
	if _, ok := s.root.Lookup(path); !ok {
		return
	}
	s.root = s.root.DeletePath(path)
	s.prov.Delete(path.String())
}

func dataParallel(s *state) (value.Value, outcome, error) {
	pipe, _ := s.optInt("pipe-parallel-size")
	mp, err := s.int("model-parallel-size")
	if err != nil {
		return value.Null(), absent, err
	}
	dp, ok := s.topo.DataParallel(pipe, mp)
	if !ok {
		return value.Null(), absent, &Error{Code: diag.DrvInvariant,
			Msg: fmt.Sprintf("%s do not split into pipe=%d x model=%d groups", s.topo, pipe, mp)}
	}
	return value.Int(dp), computed, nil
}

func trainBatch(s *state) (value.Value, outcome, error) {
	micro, err := s.int("train_micro_batch_size_per_gpu")
	if err != nil {
		return value.Null(), absent, err
	}
	accum, err := s.int("gradient_accumulation_steps")
	if err != nil {
		return value.Null(), absent, err
	}
	dp, err := s.int("data-parallel-size")
	if err != nil {
		return value.Null(), absent, err
	}
	n, err := s.mul("global batch size", micro, accum, dp)
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(n), computed, nil
}

func decayIters(s *state) (value.Value, outcome, error) {
	if s.explicit("lr-decay-iters") {
		return value.Null(), keep, nil
	}
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(iters), computed, nil
}

func warmupIters(s *state) (value.Value, outcome, error) {
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	v, ok := s.get("warmup")
	if !ok {
		return value.Int(0), computed, nil
	}
	ratio, _ := v.FloatVal()
	w := WarmupIters(ratio, iters)
	if w < 0 || w > iters {
		return value.Null(), absent, &Error{Code: diag.DrvInvariant,
			Msg: fmt.Sprintf("warmup ratio %s yields %d of %d iterations", value.FormatFloat(ratio), w, iters)}
	}
	return value.Int(w), computed, nil
}

func optimizerSteps(s *state) (value.Value, outcome, error) {
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(iters), computed, nil
}

func microSteps(s *state) (value.Value, outcome, error) {
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	accum, err := s.int("gradient_accumulation_steps")
	if err != nil {
		return value.Null(), absent, err
	}
	n, err := s.mul("micro-steps", iters, accum)
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(n), computed, nil
}

func checkpointCount(s *state) (value.Value, outcome, error) {
	every, ok := s.optInt("save-interval")
	if !ok {
		return value.Null(), absent, nil
	}
	if every <= 0 {
		return value.Null(), absent, &Error{Code: diag.DrvInvariant, Msg: fmt.Sprintf("save-interval %d is not positive", every)}
	}
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(iters / every), computed, nil
}

func trainSamples(s *state) (value.Value, outcome, error) {
	iters, err := s.int("train-iters")
	if err != nil {
		return value.Null(), absent, err
	}
	batch, err := s.int("train_batch_size")
	if err != nil {
		return value.Null(), absent, err
	}
	n, err := s.mul("train-samples", iters, batch)
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(n), computed, nil
}

func trainTokens(s *state) (value.Value, outcome, error) {
	samples, err := s.int("train-samples")
	if err != nil {
		return value.Null(), absent, err
	}
	seq, err := s.int("seq-length")
	if err != nil {
		return value.Null(), absent, err
	}
	n, err := s.mul("train-tokens", samples, seq)
	if err != nil {
		return value.Null(), absent, err
	}
	return value.Int(n), computed, nil
}

func precision(s *state) (value.Value, outcome, error) {
	enabled := func(key string) bool {
		v, ok := s.get(key)
		b, _ := v.BoolVal()
		return ok && b
	}
	fp16, bf16 := enabled("fp16.enabled"), enabled("bf16.enabled")
	switch {
	case fp16 && bf16:
		return value.Null(), absent, &Error{Code: diag.DrvInvariant, Msg: "fp16 and bf16 are both enabled"}
	case fp16:
		return value.String("fp16"), computed, nil
	case bf16:
		return value.String("bfloat16"), computed, nil
	}
	return value.String("fp32"), computed, nil
}

// zeroStep resolves a ZeRO size given as "auto"; explicit sizes are kept
// and absent keys stay absent.
func zeroStep(name, note string, size func(hidden int64) (int64, error)) step {
	key := "zero_optimization." + name
	return step{key: key, note: note, fn: func(s *state) (value.Value, outcome, error) {
		v, ok := s.get(key)
		if !ok {
			return value.Null(), absent, nil
		}
		if str, isStr := v.StringVal(); !isStr || str != "auto" {
			return v, keep, nil
		}
		h, err := s.int("hidden-size")
		if err != nil {
			return value.Null(), absent, err
		}
		n, err := size(h)
		if err != nil {
			return value.Null(), absent, err
		}
		return value.Int(n), computed, nil
	}}
}

func hiddenSquared(h int64) (int64, error) {
	p, ok := value.MulInt(h, h)
	if !ok {
		return 0, &Error{Code: diag.DrvOverflow, Msg: "hidden-size^2 overflows a 64-bit integer"}
	}
	return p, nil
}

func prefetch(h int64) (int64, error) {
	sq, err := hiddenSquared(h)
	if err != nil {
		return 0, err
	}
	return PrefetchBucket(sq), nil
}

func persistence(h int64) (int64, error) {
	p, ok := value.MulInt(10, h)
	if !ok {
		return 0, &Error{Code: diag.DrvOverflow, Msg: "10 x hidden-size overflows a 64-bit integer"}
	}
	return p, nil
}
