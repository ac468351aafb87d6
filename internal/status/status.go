package status

import (
	"errors"
	"fmt"
	"slices"
)

// Shift is the lifecycle state of a posted shift.
type Shift string

const (
	Posted          Shift = "posted"
	OfferedToWorker Shift = "offered_to_worker"
	Confirmed       Shift = "confirmed"
	Filled          Shift = "filled"
	PendingChanges  Shift = "pending_changes"
	Completed       Shift = "completed"
	Cancelled       Shift = "cancelled"
)

// Job is the state of a job listing.
type Job string

const (
	Open   Job = "open"
	Closed Job = "closed"
)

// ErrUnknownStatus is returned for any value outside the enumerations.
var ErrUnknownStatus = errors.New("unknown status")

var shiftStates = []Shift{Posted, OfferedToWorker, Confirmed, Filled, PendingChanges, Completed, Cancelled}

// validTransitions lists the moves the client can observe or request.
// Filled and PendingChanges are operator-side aggregates and are only read.
var validTransitions = map[Shift][]Shift{
	Posted:          {OfferedToWorker},
	OfferedToWorker: {Confirmed, Posted},
	Confirmed:       {Completed, Cancelled},
	Filled:          {},
	PendingChanges:  {},
	Completed:       {},
	Cancelled:       {},
}

// ParseShift validates s against the shift enumeration.
func ParseShift(s string) (Shift, error) {
	st := Shift(s)
	if !slices.Contains(shiftStates, st) {
		return "", fmt.Errorf("%w: shift %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// ParseJob validates s against the job enumeration.
func ParseJob(s string) (Job, error) {
	switch j := Job(s); j {
	case Open, Closed:
		return j, nil
	default:
		return "", fmt.Errorf("%w: job %q", ErrUnknownStatus, s)
	}
}

// Shifts returns every shift state in declaration order.
func Shifts() []Shift {
	return slices.Clone(shiftStates)
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to Shift) bool {
	return slices.Contains(validTransitions[from], to)
}

// Validate returns an error if from → to is not an allowed transition.
func Validate(from, to Shift) error {
	if _, ok := validTransitions[from]; !ok {
		return fmt.Errorf("%w: shift %q", ErrUnknownStatus, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Terminal reports whether no client-side transition leaves s.
func (s Shift) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// String returns the wire value.
func (s Shift) String() string { return string(s) }

// String returns the wire value.
func (j Job) String() string { return string(j) }

// Change is the payload published when an action moves a shift.
type Change struct {
	ShiftID string `json:"shift_id"`
	From    Shift  `json:"from"`
	To      Shift  `json:"to"`
}
