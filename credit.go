// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

// A CreditDelta is one buffered change to a stage's activation credit:
// +1 per incoming activation request, -1 per successful blocking wait.
type CreditDelta struct {
	Stage StageID
	Delta int
}

// creditSched tracks per-stage activation credits and decides stage
// eligibility. Credits only ever change at the cycle boundary: requests
// and consumptions emitted during a cycle are buffered as deltas and
// rolled into the counters at commit, so a credit granted in cycle c is
// consumable in cycle c+1 at the earliest, matching the write log's
// next-cycle visibility.
type creditSched struct {
	credits []int64
	deltas  []CreditDelta
}

func newCreditSched(n int) *creditSched {
	return &creditSched{credits: make([]int64, n)}
}

// eligible reports whether the stage body runs this cycle. The Driver is
// outside the credit state machine: it is the sole clock source and is
// evaluated unconditionally every cycle.
func (cs *creditSched) eligible(st *stageDef) bool {
	if st.driver {
		return true
	}
	return cs.credits[st.id] > 0
}

// request buffers one activation request. Simultaneous requests in the
// same cycle accumulate; the backlog drains at one admission per cycle.
func (cs *creditSched) request(s StageID) {
	cs.deltas = append(cs.deltas, CreditDelta{Stage: s, Delta: +1})
}

// consume buffers the single decrement a stage earns by firing. A stage
// that blocks on a failed wait never reaches here; its credit is
// unchanged and it retries on a later cycle.
func (cs *creditSched) consume(st *stageDef) {
	if st.driver {
		return
	}
	cs.deltas = append(cs.deltas, CreditDelta{Stage: st.id, Delta: -1})
}

// apply rolls the buffered deltas into the counters and returns them for
// the trace. Counters never go negative: a consumption is only ever
// emitted by an eligible stage, which held at least one credit.
func (cs *creditSched) apply() []CreditDelta {
	if len(cs.deltas) == 0 {
		return nil
	}
	out := cs.deltas
	cs.deltas = nil
	for _, d := range out {
		cs.credits[d.Stage] += int64(d.Delta)
		if cs.credits[d.Stage] < 0 {
			panic("seqsim: negative credit")
		}
	}
	return out
}

// credit returns the committed counter value for s.
func (cs *creditSched) credit(s StageID) int64 { return cs.credits[s] }
