package pipeline

import "time"

// State is a point in the resolution state machine.
type State string

const (
	StatePending     State = "pending"
	StateLoaded      State = "loaded"
	StateMerged      State = "merged"
	StateSchemaValid State = "schema-valid"
	StateCrossValid  State = "cross-valid"
	StateDerived     State = "derived"
	StateEmitted     State = "emitted"
	// StateRejected is terminal and carries the full diagnostic set.
	StateRejected State = "rejected"
)

// Stage is the step that moves a request from one state to the next.
type Stage string

const (
	StageLoad   Stage = "load"
	StageMerge  Stage = "merge"
	StageSchema Stage = "schema"
	StageRules  Stage = "rules"
	StageDerive Stage = "derive"
	StageEmit   Stage = "emit"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageMerge, StageSchema, StageRules, StageDerive, StageEmit}

// target is the state a stage reaches on success.
func (s Stage) target() State {
	switch s {
	case StageLoad:
		return StateLoaded
	case StageMerge:
		return StateMerged
	case StageSchema:
		return StateSchemaValid
	case StageRules:
		return StateCrossValid
	case StageDerive:
		return StateDerived
	case StageEmit:
		return StateEmitted
	}
	return StatePending
}

// Status captures progress of one stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	// StatusCached means the plan was served from the cache.
	StatusCached Status = "cached"
)

// Event reports progress of one request (Request is empty for events about
// the batch as a whole).
type Event struct {
	Request string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Sinks passed to ResolveBatch are
// called from several goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }
