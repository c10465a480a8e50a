package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"trainplan/internal/cache"
	"trainplan/internal/diag"
	"trainplan/internal/rules"
	"trainplan/internal/schema"
	"trainplan/internal/topology"
	"trainplan/internal/value"
)

const minimal = `{
  // smallest config the builtin schema accepts
  "num-layers": 2,
  "hidden-size": 64,
  "num-attention-heads": 4,
  "seq-length": 128,
  "train_micro_batch_size_per_gpu": 4,
  "train-iters": 100,
  "optimizer": {"type": "Adam", "params": {"lr": 0.001,},},
}`

func opts(devices int64) Options {
	return Options{Schema: schema.Latest(), Topology: topology.Topology{Devices: devices}}
}

func src(name, text string) Source {
	return Source{Name: name, Content: []byte(text)}
}

func intAt(t *testing.T, res *Result, path string) int64 {
	t.Helper()
	if res.Plan == nil {
		t.Fatalf("no plan; diagnostics:\n%s", short(res))
	}
	v, ok := res.Plan.Root.Lookup(value.ParsePath(path))
	if !ok {
		t.Fatalf("plan has no %s", path)
	}
	n, ok := v.IntVal()
	if !ok {
		t.Fatalf("%s is %s, not an integer", path, v.Kind())
	}
	return n
}

func short(res *Result) string {
	return diag.FormatShort(res.Bag.Items(), res.FileSet, false)
}

func codes(res *Result) map[diag.Code]int {
	out := map[diag.Code]int{}
	for _, d := range res.Bag.Items() {
		out[d.Code]++
	}
	return out
}

func TestResolveMinimal(t *testing.T) {
	res, err := Resolve([]Source{src("base.json", minimal)}, opts(1))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, short(res))
	}
	if res.State != StateEmitted || res.Status != diag.StatusClean {
		t.Fatalf("state=%s status=%s\n%s", res.State, res.Status, short(res))
	}
	if len(res.Output) == 0 || res.Output[len(res.Output)-1] != '\n' {
		t.Fatalf("unexpected output %q", res.Output)
	}
	if got := intAt(t, res, "train_batch_size"); got != 4 {
		t.Errorf("train_batch_size = %d, want 4", got)
	}
	if got := intAt(t, res, "warmup-iters"); got != 1 {
		t.Errorf("warmup-iters = %d, want 1", got)
	}
	if res.Plan.SchemaVersion != schema.LatestVersion {
		t.Errorf("schema version %q", res.Plan.SchemaVersion)
	}
}

func TestGlobalBatchSize(t *testing.T) {
	res, err := Resolve([]Source{
		src("base.json", minimal),
		src("batch.json", `{"train_micro_batch_size_per_gpu": 8, "gradient_accumulation_steps": 4}`),
	}, opts(2))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, short(res))
	}
	if got := intAt(t, res, "data-parallel-size"); got != 2 {
		t.Errorf("data-parallel-size = %d, want 2", got)
	}
	if got := intAt(t, res, "train_batch_size"); got != 64 {
		t.Errorf("train_batch_size = %d, want 64", got)
	}
}

func TestDecayWindowRejected(t *testing.T) {
	res, err := Resolve([]Source{
		src("base.json", minimal),
		src("schedule.json", `{"train-iters": 50000, "lr-decay-iters": 60000}`),
	}, opts(1))

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("want RejectedError, got %v", err)
	}
	if rejected.Stage != StageRules || rejected.State != StateSchemaValid {
		t.Errorf("rejected at %s from %s", rejected.Stage, rejected.State)
	}
	if res.State != StateRejected || res.Status != diag.StatusRejected {
		t.Errorf("state=%s status=%s", res.State, res.Status)
	}
	if res.Plan != nil || res.Output != nil {
		t.Errorf("rejected request must not emit a plan")
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.CnsOrdering && d.Key == "lr-decay-iters" {
			found = true
			if !strings.Contains(d.Message, "60000") || !strings.Contains(d.Message, "50000") {
				t.Errorf("message lacks values: %s", d.Message)
			}
		}
	}
	if !found {
		t.Fatalf("no ordering diagnostic:\n%s", short(res))
	}
}

func TestHiddenHeadsRejectedNamingBothFields(t *testing.T) {
	res, err := Resolve([]Source{
		src("base.json", minimal),
		src("shape.json", `{"hidden-size": 66}`),
	}, opts(1))
	if err == nil {
		t.Fatalf("expected rejection")
	}
	var d diag.Diagnostic
	for _, it := range res.Bag.Items() {
		if it.Code == diag.CnsDivisibility {
			d = it
		}
	}
	if d.Code != diag.CnsDivisibility {
		t.Fatalf("no divisibility diagnostic:\n%s", short(res))
	}
	if !strings.Contains(d.Message, "hidden-size") || !strings.Contains(d.Message, "num-attention-heads") {
		t.Errorf("message must name both fields: %s", d.Message)
	}
	if !strings.HasPrefix(res.FileSet.Position(d.Primary), "shape.json:1:") {
		t.Errorf("primary points at %s", res.FileSet.Position(d.Primary))
	}
}

func TestNestedMergeKeepsLR(t *testing.T) {
	res, err := Resolve([]Source{
		src("a.json", strings.Replace(minimal, `"lr": 0.001`, `"lr": 0.0001`, 1)),
		src("b.json", `{"optimizer": {"params": {"eps": 1e-8}}}`),
	}, opts(1))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, short(res))
	}
	lr, _ := res.Plan.Root.Lookup(value.ParsePath("optimizer.params.lr"))
	if f, _ := lr.FloatVal(); f != 0.0001 {
		t.Errorf("optimizer.params.lr = %v", lr.Render())
	}
	typ, _ := res.Plan.Root.Lookup(value.ParsePath("optimizer.type"))
	if s, _ := typ.StringVal(); s != "Adam" {
		t.Errorf("optimizer.type = %v", typ.Render())
	}
	o, ok := res.Plan.Origins.Winner("optimizer.params.eps")
	if !ok || o.Source != "b.json" {
		t.Errorf("eps origin = %+v", o)
	}
}

func TestUnknownKeyStrictness(t *testing.T) {
	warn := src("extra.json", `{"foo-bar": 1}`)
	res, err := Resolve([]Source{src("base.json", minimal), warn}, opts(1))
	if err != nil {
		t.Fatalf("unknown key must only warn: %v", err)
	}
	if res.Status != diag.StatusWarnings || res.State != StateEmitted {
		t.Fatalf("state=%s status=%s", res.State, res.Status)
	}
	if _, kept := res.Plan.Root.Get("foo-bar"); kept {
		t.Errorf("unknown key leaked into the plan")
	}

	bad := src("extra.json", `{"foo-bar": 1, "hidden-dropout": "high"}`)
	o := opts(1)
	o.Strict = true
	res, err = Resolve([]Source{src("base.json", minimal), bad}, o)
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Stage != StageSchema {
		t.Fatalf("want schema rejection, got %v", err)
	}
	c := codes(res)
	if c[diag.SchUnknownKey] != 1 || c[diag.SchTypeMismatch] != 1 {
		t.Fatalf("both findings must be reported:\n%s", short(res))
	}
	for _, d := range res.Bag.Items() {
		if d.Code == diag.SchUnknownKey && d.Severity != diag.SevError {
			t.Errorf("strict unknown key has severity %s", d.Severity)
		}
	}
}

func TestReResolveIsIdempotent(t *testing.T) {
	o := opts(2)
	first, err := Resolve([]Source{
		src("base.json", minimal),
		src("zero.json", `{"zero_optimization": {"stage": 1, "reduce_bucket_size": "auto"}, "save-interval": 30}`),
	}, o)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, short(first))
	}
	second, err := Resolve([]Source{src("plan.json", string(first.Output))}, o)
	if err != nil {
		t.Fatalf("re-resolve failed: %v\n%s", err, short(second))
	}
	if !bytes.Equal(first.Output, second.Output) {
		t.Fatalf("re-resolve changed the plan:\n%s\n---\n%s", first.Output, second.Output)
	}
	if first.Plan.Digest != second.Plan.Digest {
		t.Errorf("digest changed")
	}
}

func TestSyntaxErrorsFromAllSources(t *testing.T) {
	res, err := Resolve([]Source{
		src("a.json", `{"num-layers": }`),
		src("b.json", `{"hidden-size": 64 "x": 1}`),
	}, opts(1))
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Stage != StageLoad || rejected.State != StatePending {
		t.Fatalf("want load rejection, got %v", err)
	}
	files := map[string]bool{}
	for _, d := range res.Bag.Items() {
		if d.Code.Class() != "SyntaxError" {
			t.Errorf("later stage ran: %s", d.Code.ID())
		}
		files[strings.SplitN(res.FileSet.Position(d.Primary), ":", 2)[0]] = true
	}
	if !files["a.json"] || !files["b.json"] {
		t.Errorf("want errors from both sources, got %v", files)
	}
}

func TestResolveFilesMissingSource(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	if err := os.WriteFile(base, []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := ResolveFiles([]string{base}, opts(1))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, short(res))
	}

	res, err = ResolveFiles([]string{base, filepath.Join(dir, "missing.json")}, opts(1))
	if err == nil {
		t.Fatalf("missing source must reject")
	}
	if codes(res)[diag.IOLoadFileError] != 1 {
		t.Fatalf("want one IO error:\n%s", short(res))
	}
}

func TestMisuse(t *testing.T) {
	if _, err := Resolve(nil, Options{Topology: topology.Topology{Devices: 1}}); !errors.Is(err, ErrNoSchema) {
		t.Errorf("nil schema: %v", err)
	}
	if _, err := Resolve(nil, opts(0)); !errors.Is(err, topology.ErrNoDevices) {
		t.Errorf("no devices: %v", err)
	}
	o := opts(1)
	o.Format = "toml"
	if _, err := Resolve(nil, o); err == nil {
		t.Errorf("unknown format accepted")
	}
}

func TestObserverSeesEveryStage(t *testing.T) {
	var done []Stage
	o := opts(1)
	o.EnableTimings = true
	o.Observer = SinkFunc(func(e Event) {
		if e.Status == StatusDone {
			done = append(done, e.Stage)
		}
	})
	res, err := Resolve([]Source{src("base.json", minimal)}, o)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != len(Stages) {
		t.Fatalf("done events %v", done)
	}
	for i, s := range Stages {
		if done[i] != s {
			t.Errorf("event %d is %s, want %s", i, done[i], s)
		}
	}
	if res.Timer.Len() != len(Stages) {
		t.Errorf("timer has %d phases", res.Timer.Len())
	}
}

func TestCacheServesCleanPlans(t *testing.T) {
	c, err := cache.OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	o := opts(1)
	o.Cache = c
	sources := []Source{src("base.json", minimal)}

	first, err := Resolve(sources, o)
	if err != nil || first.Cached {
		t.Fatalf("first resolve: err=%v cached=%v", err, first.Cached)
	}
	second, err := Resolve(sources, o)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.State != StateEmitted {
		t.Fatalf("second resolve not served from cache")
	}
	if !bytes.Equal(first.Output, second.Output) || first.Plan.Digest != second.Plan.Digest {
		t.Errorf("cached plan differs")
	}

	o.Strict = true
	third, err := Resolve(sources, o)
	if err != nil || third.Cached {
		t.Errorf("strictness is part of the key: err=%v cached=%v", err, third.Cached)
	}

	o.Strict = false
	reg := rules.Builtin()
	if err := reg.Register(rules.New("always-fine", func(*rules.Context) []diag.Diagnostic { return nil })); err != nil {
		t.Fatal(err)
	}
	o.Rules = reg
	fourth, err := Resolve(sources, o)
	if err != nil || fourth.Cached {
		t.Errorf("rule set is part of the key: err=%v cached=%v", err, fourth.Cached)
	}
}

func TestResolveBatch(t *testing.T) {
	reqs := []Request{
		{Name: "ok", Sources: []Source{src("base.json", minimal)}},
		{Name: "bad", Sources: []Source{src("base.json", minimal), src("c.json", `{"hidden-size": 66}`)}},
		{Name: "warn", Sources: []Source{src("base.json", minimal), src("c.json", `{"foo-bar": 1}`)}},
	}
	var (
		mu    sync.Mutex
		named = map[string]int{}
	)
	sink := SinkFunc(func(e Event) {
		mu.Lock()
		named[e.Request]++
		mu.Unlock()
	})

	results, err := ResolveBatch(t.Context(), reqs, opts(1), 2, sink)
	if err != nil {
		t.Fatal(err)
	}
	want := []diag.Status{diag.StatusClean, diag.StatusRejected, diag.StatusWarnings}
	for i, res := range results {
		if res.Name != reqs[i].Name || res.Status != want[i] {
			t.Errorf("result %d: name=%s status=%s", i, res.Name, res.Status)
		}
	}
	for _, r := range reqs {
		if named[r.Name] == 0 {
			t.Errorf("no events for %s", r.Name)
		}
	}
}

func TestHugeParallelSizesAreRejected(t *testing.T) {
	sizes := `{
  "pipe-parallel-size": 4611686018427387904,
  "model-parallel-size": 4,
}`
	res, err := Resolve([]Source{src("base.json", minimal), src("sizes.json", sizes)}, opts(8))
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want RejectedError\n%s", err, short(res))
	}
	if rejected.Stage != StageRules {
		t.Errorf("rejected at %s, want %s", rejected.Stage, StageRules)
	}
	if codes(res)[diag.CnsTopology] != 1 {
		t.Errorf("want one topology error:\n%s", short(res))
	}
}
