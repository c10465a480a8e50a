package pipeline

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Request is one resolution: fragments read from Paths, then in-memory
// Sources. Name defaults to the last fragment.
type Request struct {
	Name    string
	Paths   []string
	Sources []Source
}

func (r Request) name() string {
	switch {
	case r.Name != "":
		return r.Name
	case len(r.Sources) > 0:
		return r.Sources[len(r.Sources)-1].Name
	case len(r.Paths) > 0:
		return r.Paths[len(r.Paths)-1]
	}
	return ""
}

// ResolveBatch resolves requests concurrently with at most jobs workers
// (GOMAXPROCS when jobs <= 0). Results are in request order. Rejections are
// reported in the results, not as errors; the returned error is a misuse
// or cancellation error.
func ResolveBatch(ctx context.Context, reqs []Request, opts Options, jobs int, sink ProgressSink) ([]*Result, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(reqs)))

	for i, req := range reqs {
		if sink != nil {
			sink.OnEvent(Event{Request: req.name(), Stage: StageLoad, Status: StatusQueued})
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			ropts := opts
			ropts.Observer = sink
			if opts.Logger != nil {
				ropts.Logger = opts.Logger.WithField("candidate", req.name())
			}

			res, err := ResolveRequest(req, ropts)
			var rejected *RejectedError
			if err != nil && !errors.As(err, &rejected) {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
