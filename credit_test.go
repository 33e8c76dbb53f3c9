// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import "testing"

func Test_creditSched_eligibility(t *testing.T) {
	drv := &stageDef{id: 0, kind: seqStage, driver: true}
	st := &stageDef{id: 1, kind: seqStage}

	cs := newCreditSched(2)
	if !cs.eligible(drv) {
		t.Error("driver must always be eligible")
	}
	if cs.eligible(st) {
		t.Error("stage with zero credit must be idle")
	}

	cs.request(st.id)
	if cs.eligible(st) {
		t.Error("request must not be consumable before commit")
	}
	cs.apply()
	if !cs.eligible(st) {
		t.Error("stage with credit must be eligible")
	}
}

func Test_creditSched_accumulate(t *testing.T) {
	st := &stageDef{id: 0, kind: seqStage}
	cs := newCreditSched(1)

	// simultaneous same-cycle requests accumulate into a backlog
	cs.request(st.id)
	cs.request(st.id)
	cs.request(st.id)
	deltas := cs.apply()
	if len(deltas) != 3 {
		t.Fatalf("got %d deltas, expected 3", len(deltas))
	}
	if cs.credit(st.id) != 3 {
		t.Fatalf("credit = %d, expected 3", cs.credit(st.id))
	}

	// drained one admission per cycle
	for i := int64(3); i > 0; i-- {
		if !cs.eligible(st) {
			t.Fatalf("stage idle with credit %d", cs.credit(st.id))
		}
		cs.consume(st)
		cs.apply()
		if cs.credit(st.id) != i-1 {
			t.Fatalf("credit = %d, expected %d", cs.credit(st.id), i-1)
		}
	}
	if cs.eligible(st) {
		t.Error("stage eligible after backlog drained")
	}
}

func Test_creditSched_driverNeverConsumes(t *testing.T) {
	drv := &stageDef{id: 0, kind: seqStage, driver: true}
	cs := newCreditSched(1)
	cs.consume(drv)
	if len(cs.apply()) != 0 {
		t.Error("driver consumption must be a no-op")
	}
	if !cs.eligible(drv) {
		t.Error("driver eligibility is unconditional")
	}
}
