// Package topology describes the cluster a plan is resolved for.
package topology

import (
	"errors"
	"fmt"

	"trainplan/internal/value"
)

// ErrNoDevices is returned for a topology without devices.
var ErrNoDevices = errors.New("device count must be positive")

// Topology is external cluster information that no fragment carries.
type Topology struct {
	Devices int64
}

// Validate checks that t can be used for resolution.
func (t Topology) Validate() error {
	if t.Devices <= 0 {
		return fmt.Errorf("%w (got %d)", ErrNoDevices, t.Devices)
	}
	return nil
}

// ModelGroup is the number of devices holding one model replica:
// max(1, pipe) x model. A pipe size of 0 means no pipeline engine.
// ok is false when the product overflows int64 or is not positive.
func ModelGroup(pipe, model int64) (group int64, ok bool) {
	group, ok = value.MulInt(max(1, pipe), model)
	if !ok || group <= 0 {
		return 0, false
	}
	return group, true
}

// DataParallel returns the data-parallel degree devices / (max(1, pipe) x
// model). ok is false when the devices do not split evenly or the degree
// would be below 1.
func (t Topology) DataParallel(pipe, model int64) (degree int64, ok bool) {
	g, ok := ModelGroup(pipe, model)
	if !ok || t.Devices <= 0 || t.Devices%g != 0 {
		return 0, false
	}
	return t.Devices / g, true
}

func (t Topology) String() string {
	return fmt.Sprintf("%d devices", t.Devices)
}
