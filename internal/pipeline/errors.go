package pipeline

import (
	"errors"
	"fmt"

	"trainplan/internal/diag"
)

// ErrNoSchema is returned when Options carry no schema.
var ErrNoSchema = errors.New("no schema configured")

// RejectedError is the error form of a rejected request. Stage is the stage
// that failed; State is the last state reached before it.
type RejectedError struct {
	Stage Stage
	State State
	Bag   *diag.Bag
}

func (e *RejectedError) Error() string {
	n := 0
	if e.Bag != nil {
		n = e.Bag.Count(diag.SevError)
	}
	if n == 1 {
		return fmt.Sprintf("rejected at %s stage: 1 error", e.Stage)
	}
	return fmt.Sprintf("rejected at %s stage: %d errors", e.Stage, n)
}
