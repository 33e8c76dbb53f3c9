// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import "testing"

func Test_writeLog_collision(t *testing.T) {
	l := newWriteLog()
	if err := l.submit(2, 3, 0, 10); err != nil {
		t.Fatal(err)
	}
	err := l.submit(2, 3, 1, 20)
	ce, ok := err.(*CollisionError)
	if !ok {
		t.Fatalf("expected *CollisionError, got %v", err)
	}
	if ce.Port != 2 || ce.Cycle != 3 {
		t.Errorf("collision at port %d cycle %d, expected port 2 cycle 3", ce.Port, ce.Cycle)
	}
	// same port, different cycle is fine
	if err := l.submit(2, 4, 0, 10); err != nil {
		t.Error(err)
	}
}

func Test_writeLog_commitOrder(t *testing.T) {
	// two ports target the same address; regardless of submit order the
	// higher port must win
	td := []struct {
		name  string
		first WritePortID
	}{
		{"low first", 0},
		{"high first", 1},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			l := newWriteLog()
			vals := map[WritePortID]int64{0: 10, 1: 20}
			second := WritePortID(1) - d.first
			if err := l.submit(d.first, 3, 7, vals[d.first]); err != nil {
				t.Fatal(err)
			}
			if err := l.submit(second, 3, 7, vals[second]); err != nil {
				t.Fatal(err)
			}
			var committed int64
			evs := l.commit(3, func(ev WriteEvent) { committed = ev.Value })
			if committed != 20 {
				t.Errorf("committed %d, expected 20 (port 1 wins)", committed)
			}
			if len(evs) != 2 || evs[0].Port != 0 || evs[1].Port != 1 {
				t.Errorf("commit order %v, expected ports ascending", evs)
			}
		})
	}
}

func Test_writeLog_drained(t *testing.T) {
	l := newWriteLog()
	if err := l.submit(0, 1, 0, 5); err != nil {
		t.Fatal(err)
	}
	n := 0
	l.commit(1, func(WriteEvent) { n++ })
	if n != 1 {
		t.Fatalf("applied %d events, expected 1", n)
	}
	// events are consumed exactly once
	l.commit(1, func(WriteEvent) { n++ })
	if n != 1 {
		t.Errorf("commit re-applied a drained event")
	}
	// other cycles remain pending
	if err := l.submit(0, 1, 0, 6); err != nil {
		t.Errorf("slot not freed after commit: %v", err)
	}
}
