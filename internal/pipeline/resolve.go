// Package pipeline drives a resolution request through
// load, merge, schema, rules, derive and emit.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trainplan/internal/cache"
	"trainplan/internal/derive"
	"trainplan/internal/diag"
	"trainplan/internal/fragment"
	"trainplan/internal/merge"
	"trainplan/internal/observ"
	"trainplan/internal/plan"
	"trainplan/internal/provenance"
	"trainplan/internal/schema"
	"trainplan/internal/source"
	"trainplan/internal/version"
)

// Source is one named fragment text. Merge order is slice order.
type Source struct {
	Name    string
	Content []byte
}

// Result is the outcome of one request. On rejection Plan and Output are
// nil and Config holds the last configuration that passed a stage.
type Result struct {
	Name    string
	State   State
	Status  diag.Status
	FileSet *source.FileSet
	Bag     *diag.Bag
	Config  *merge.Config
	Plan    *plan.Plan
	Output  []byte
	Cached  bool
	Timer   *observ.Timer
}

// Resolve runs sources through every stage. It returns a non-nil Result
// together with a *RejectedError when a stage fails; any other error means
// the options were unusable and no Result is returned.
func Resolve(sources []Source, opts Options) (*Result, error) {
	return ResolveRequest(Request{Sources: sources}, opts)
}

// ResolveFiles reads fragments from paths. A source that cannot be read is
// an IO error and rejects the request at the load stage.
func ResolveFiles(paths []string, opts Options) (*Result, error) {
	return ResolveRequest(Request{Paths: paths}, opts)
}

// ResolveRequest resolves req.Paths followed by req.Sources, in that merge
// order.
func ResolveRequest(req Request, opts Options) (*Result, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	r := newRun(req.name(), source.NewFileSet(), opts)
	ids := make([]source.FileID, 0, len(req.Paths)+len(req.Sources))
	for _, path := range req.Paths {
		id, err := r.fs.Load(path)
		if err != nil {
			r.bag.Add(diag.NewError(diag.IOLoadFileError, source.NoSpan,
				fmt.Sprintf("failed to load %s: %v", path, err)).WithValue(path))
			continue
		}
		ids = append(ids, id)
	}
	for _, s := range req.Sources {
		ids = append(ids, r.fs.AddVirtual(s.Name, s.Content))
	}
	return r.exec(ids)
}

type run struct {
	name   string
	opts   Options
	format plan.Format
	fs     *source.FileSet
	bag    *diag.Bag
	timer  *observ.Timer
	log    logrus.FieldLogger
	res    *Result
	failed *RejectedError
}

func newRun(name string, fs *source.FileSet, opts Options) *run {
	format, _ := plan.ParseFormat(string(opts.Format))
	r := &run{
		name:   name,
		opts:   opts,
		format: format,
		fs:     fs,
		bag:    diag.NewBag(opts.MaxDiagnostics),
		log:    opts.logger().WithField("request", name),
	}
	if opts.EnableTimings {
		r.timer = observ.NewTimer()
	}
	r.res = &Result{
		Name:    name,
		State:   StatePending,
		FileSet: fs,
		Bag:     r.bag,
		Config:  merge.Empty(),
		Timer:   r.timer,
	}
	return r
}

func (r *run) emit(evt Event) {
	if r.opts.Observer == nil {
		return
	}
	evt.Request = r.name
	r.opts.Observer.OnEvent(evt)
}

// step runs one stage. fn reports into rep and returns false on failure.
func (r *run) step(stage Stage, fn func(rep diag.Reporter) (note string, ok bool)) bool {
	r.emit(Event{Stage: stage, Status: StatusWorking})
	done := r.timer.Track(string(stage))
	start := time.Now()

	rep := &diag.SliceReporter{}
	note, ok := fn(rep)
	if ok {
		// a stage that reports an error fails even if it claims success
		for _, d := range rep.Items {
			if d.Severity >= diag.SevError {
				ok = false
				break
			}
		}
	}
	r.bag.AddAll(rep.Items)
	done(note)
	elapsed := time.Since(start)

	fields := logrus.Fields{
		"stage":       stage,
		"diagnostics": len(rep.Items),
		"elapsed":     elapsed,
	}
	if !ok {
		r.failed = &RejectedError{Stage: stage, State: r.res.State, Bag: r.bag}
		r.res.State = StateRejected
		r.log.WithFields(fields).WithField("state", r.res.State).Debug("stage failed")
		r.emit(Event{Stage: stage, Status: StatusError, Err: r.failed, Elapsed: elapsed})
		return false
	}
	r.res.State = stage.target()
	r.log.WithFields(fields).WithField("state", r.res.State).Debug("stage done")
	r.emit(Event{Stage: stage, Status: StatusDone, Elapsed: elapsed})
	return true
}

func (r *run) exec(ids []source.FileID) (*Result, error) {
	res := r.res
	defer func() {
		r.bag.Sort()
		res.Status = r.bag.Status()
	}()
	for _, stage := range Stages {
		r.emit(Event{Stage: stage, Status: StatusQueued})
	}

	var frags []*fragment.Fragment
	loadFailed := r.bag.HasErrors()
	if !r.step(StageLoad, func(rep diag.Reporter) (string, bool) {
		ok := !loadFailed
		for i, id := range ids {
			f, fok := fragment.Load(r.fs, id, fragment.Options{Reporter: rep, Rank: i})
			if !fok {
				ok = false
				continue
			}
			r.log.WithField("source", f.Source).Debug("fragment loaded")
			frags = append(frags, f)
		}
		return fmt.Sprintf("fragments=%d", len(frags)), ok
	}) {
		return res, r.rejected()
	}

	key, hit := r.lookup(ids)
	if hit {
		return res, nil
	}

	var cfg *merge.Config
	if !r.step(StageMerge, func(diag.Reporter) (string, bool) {
		cfg = merge.Merge(frags...)
		return fmt.Sprintf("keys=%d", cfg.Origins.Len()), true
	}) {
		return res, r.rejected()
	}
	res.Config = cfg

	if !r.step(StageSchema, func(rep diag.Reporter) (string, bool) {
		out, ok := schema.Validate(cfg, r.opts.Schema, schema.Options{Strict: r.opts.Strict, Reporter: rep})
		if ok {
			cfg = out
		}
		return "schema=" + r.opts.Schema.Version(), ok
	}) {
		return res, r.rejected()
	}
	res.Config = cfg

	reg := r.opts.registry()
	if !r.step(StageRules, func(rep diag.Reporter) (string, bool) {
		return fmt.Sprintf("rules=%d", reg.Len()), reg.Check(cfg, r.opts.Topology, rep)
	}) {
		return res, r.rejected()
	}

	if !r.step(StageDerive, func(rep diag.Reporter) (string, bool) {
		out, ok := derive.Derive(cfg, r.opts.Topology, rep)
		if ok {
			cfg = out
		}
		return "", ok
	}) {
		return res, r.rejected()
	}
	res.Config = cfg

	if !r.step(StageEmit, func(rep diag.Reporter) (string, bool) {
		p := plan.New(cfg, r.opts.Schema.Version())
		out, err := p.Encode(r.format)
		if err != nil {
			rep.Report(diag.NewError(diag.IOWriteError, source.NoSpan, "failed to encode plan: "+err.Error()))
			return "", false
		}
		res.Plan, res.Output = p, out
		return string(r.format), true
	}) {
		return res, r.rejected()
	}
	r.store(key)
	return res, nil
}

func (r *run) rejected() error {
	return r.failed
}

func (r *run) cacheKey(ids []source.FileID) cache.Key {
	srcs := make([]cache.Source, 0, len(ids))
	for _, id := range ids {
		f := r.fs.Get(id)
		srcs = append(srcs, cache.Source{Name: f.Path, Hash: f.Hash})
	}
	reg := r.opts.registry()
	names := make([]string, 0, reg.Len())
	for _, rule := range reg.Rules() {
		names = append(names, rule.Name())
	}
	return cache.KeyFor(cache.Params{
		Build:             version.Version,
		SchemaFingerprint: r.opts.Schema.Fingerprint(),
		Topology:          r.opts.Topology,
		Strict:            r.opts.Strict,
		Rules:             names,
	}, srcs)
}

// lookup serves a clean plan from the cache.
func (r *run) lookup(ids []source.FileID) (cache.Key, bool) {
	if r.opts.Cache == nil || r.bag.Len() > 0 {
		return cache.Key{}, false
	}
	key := r.cacheKey(ids)
	e, ok, err := r.opts.Cache.Get(key)
	if err != nil {
		r.log.WithError(err).Warn("cache read failed")
		return key, false
	}
	if !ok || e.SchemaVersion != r.opts.Schema.Version() {
		return key, false
	}
	root, err := plan.DecodeMsgpack(e.Tree)
	if err != nil {
		r.log.WithError(err).Warn("cache entry unreadable")
		return key, false
	}
	p := plan.New(&merge.Config{Root: root, Origins: provenance.Empty}, e.SchemaVersion)
	if p.Digest != e.Digest {
		r.log.WithField("key", key.String()).Warn("cache entry digest mismatch")
		return key, false
	}
	out, err := p.Encode(r.format)
	if err != nil {
		return key, false
	}
	r.res.State, r.res.Plan, r.res.Output, r.res.Cached = StateEmitted, p, out, true
	r.res.Config = &merge.Config{Root: root, Origins: provenance.Empty}
	r.log.WithField("key", key.String()).Debug("plan served from cache")
	for _, stage := range Stages[1:] {
		r.emit(Event{Stage: stage, Status: StatusCached})
	}
	return key, true
}

// store caches the plan of a clean request.
func (r *run) store(key cache.Key) {
	if r.opts.Cache == nil || r.bag.Len() > 0 || r.res.Plan == nil {
		return
	}
	tree, err := r.res.Plan.Encode(plan.FormatMsgpack)
	if err == nil {
		err = r.opts.Cache.Put(key, &cache.Entry{
			SchemaVersion: r.res.Plan.SchemaVersion,
			Digest:        r.res.Plan.Digest,
			Tree:          tree,
		})
	}
	if err != nil {
		r.log.WithError(err).Warn("cache write failed")
	}
}
