// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import (
	"strconv"

	"github.com/pkg/errors"
)

// A StructuralError reports a design that cannot be realized in hardware:
// a dependency cycle among combinational stages, an ambiguous write port,
// a wait placed in a combinational body, and the like. Structural errors
// are detected during elaboration and are never retried.
//
type StructuralError struct {
	Stage string // offending stage name, "" if not stage specific
	Msg   string
}

func (e *StructuralError) Error() string {
	if e.Stage == "" {
		return "structural error: " + e.Msg
	}
	return "structural error: stage " + e.Stage + ": " + e.Msg
}

// A CollisionError reports two write events submitted through the same
// physical write port in the same cycle. Real hardware cannot realize
// both, so the design is rejected at the offending submit rather than one
// value being silently dropped at commit.
//
type CollisionError struct {
	Port  WritePortID
	Cycle uint64
}

func (e *CollisionError) Error() string {
	return "write collision: port " + strconv.Itoa(int(e.Port)) +
		" written twice in cycle " + strconv.FormatUint(e.Cycle, 10)
}

// An UnderflowError reports a pop issued against a queue with no visible
// element. The implicit wait of a Backpressure stage only guarantees one
// element per input, so a body popping a queue more often than that can
// still underflow, as can a Systolic stage whose upstream guarantee is
// violated.
//
type UnderflowError struct {
	Queue string
	Cycle uint64
}

func (e *UnderflowError) Error() string {
	return "queue underflow: " + e.Queue + " popped while empty in cycle " +
		strconv.FormatUint(e.Cycle, 10)
}

// Liveness conditions reported by Run. Neither is a correctness failure:
// the run completed, but not by reaching a Finish operation.
var (
	// ErrMaxCycles is returned by Run when the cycle limit is reached.
	ErrMaxCycles = errors.New("cycle limit reached")
	// ErrNoProgress is returned by Run when no stage has fired and no
	// write has committed for the configured number of cycles.
	ErrNoProgress = errors.New("no progress: all stages idle or blocked")
)

// errBlocked aborts body evaluation at a failed blocking wait. It never
// escapes the engine.
var errBlocked = errors.New("blocked")
