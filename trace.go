// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

// A QueuePop records how many elements a queue gave up at one commit.
type QueuePop struct {
	Queue QueueID
	Count int
}

// A CycleTrace is the committed outcome of one cycle, delivered to the
// observer after the commit boundary: every write event in port order,
// every queue pop, every credit delta, and the per-stage fired flags.
// This is exactly what the software simulator back end replays.
type CycleTrace struct {
	Cycle   uint64
	Writes  []WriteEvent
	Pops    []QueuePop
	Credits []CreditDelta
	Fired   []bool // indexed by StageID
}

// The hardware back end does not consume buffered events; it consumes the
// static structure the events flow through: one trigger counter per
// sequential stage, one enable/address/data triple per write port, one
// carry signal per predicate frame. SignalPlan enumerates that structure
// from the frozen IR.

// A StageSignals describes the synthesizable interface of one stage.
type StageSignals struct {
	Stage      StageID
	Name       string
	Sequential bool
	Driver     bool
	// WaitSites is the number of blocking wait points; each one becomes
	// a decrement condition on the stage's trigger counter.
	WaitSites int
	// CarrySignals is the number of predicate frames in the body, each
	// reduced to one combinational carry signal.
	CarrySignals int
	// WritePorts lists the global write port ids the stage drives, each
	// becoming a write-enable/address/data triple.
	WritePorts []WritePortID
}

// SignalPlan returns the per-stage synthesizable signal inventory, in
// stage declaration order.
//
func (e *Engine) SignalPlan() []StageSignals {
	plan := make([]StageSignals, len(e.d.stages))
	for _, st := range e.d.stages {
		sig := StageSignals{
			Stage:      st.id,
			Name:       st.name,
			Sequential: st.kind == seqStage,
			Driver:     st.driver,
			WaitSites:  st.waits,
		}
		seen := make(map[WritePortID]bool)
		v := &irVisitor{
			pred: func(opPredicate) { sig.CarrySignals++ },
			write: func(o opWrite) {
				if !seen[o.port] {
					seen[o.port] = true
					sig.WritePorts = append(sig.WritePorts, o.port)
				}
			},
			push: func(o opPush) {
				if !seen[o.port] {
					seen[o.port] = true
					sig.WritePorts = append(sig.WritePorts, o.port)
				}
			},
		}
		v.ops(st.body)
		if st.kind == seqStage && st.timing == Backpressure {
			// the implicit input wait is a wait site like any other
			sig.WaitSites++
		}
		plan[st.id] = sig
	}
	return plan
}

// EvalOrder returns the fixed topological evaluation order computed at
// elaboration.
func (e *Engine) EvalOrder() []StageID {
	out := make([]StageID, len(e.order))
	copy(out, e.order)
	return out
}
