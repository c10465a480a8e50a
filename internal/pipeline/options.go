package pipeline

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"trainplan/internal/cache"
	"trainplan/internal/plan"
	"trainplan/internal/rules"
	"trainplan/internal/schema"
	"trainplan/internal/topology"
)

// Options configure one resolution. The same Options value may be shared by
// concurrent requests; nothing in it is mutated.
type Options struct {
	Schema   *schema.Schema
	Topology topology.Topology
	// Strict promotes unknown keys to errors.
	Strict bool
	// MaxDiagnostics caps the bag; <= 0 means no limit.
	MaxDiagnostics int
	// Rules defaults to the builtin registry.
	Rules  *rules.Registry
	Format plan.Format

	EnableTimings bool
	Logger        logrus.FieldLogger
	Observer      ProgressSink
	// Cache, when set, serves and stores clean plans. Cached plans carry no
	// provenance, so leave it nil when provenance is needed.
	Cache *cache.DiskCache
}

var builtinRules = sync.OnceValue(rules.Builtin)

func (o Options) check() error {
	if o.Schema == nil {
		return ErrNoSchema
	}
	if err := o.Topology.Validate(); err != nil {
		return err
	}
	if _, err := plan.ParseFormat(string(o.Format)); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func (o Options) registry() *rules.Registry {
	if o.Rules != nil {
		return o.Rules
	}
	return builtinRules()
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
