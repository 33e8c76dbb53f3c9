// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import "sort"

// A WriteEvent is one pending register or queue write: produced during
// evaluation, consumed exactly once at the cycle boundary.
type WriteEvent struct {
	Port  WritePortID
	Cycle uint64
	Addr  int64
	Value int64
}

// writeLog is the exclusive, cycle-indexed journal of pending writes.
// Every mutation of persistent state goes through it, so that logical
// writers never race on memory: they race on journal slots, and a slot
// conflict is a rejected design, not a silently resolved one.
type writeLog struct {
	pending map[uint64]map[WritePortID]WriteEvent
}

func newWriteLog() *writeLog {
	return &writeLog{pending: make(map[uint64]map[WritePortID]WriteEvent)}
}

// submit records one event for (port, cycle). A second event through the
// same port in the same cycle is a fatal modeling error: one physical
// write port cannot realize two writes in hardware.
func (l *writeLog) submit(port WritePortID, cycle uint64, addr, value int64) error {
	slot := l.pending[cycle]
	if slot == nil {
		slot = make(map[WritePortID]WriteEvent)
		l.pending[cycle] = slot
	}
	if _, dup := slot[port]; dup {
		return &CollisionError{Port: port, Cycle: cycle}
	}
	slot[port] = WriteEvent{Port: port, Cycle: cycle, Addr: addr, Value: value}
	return nil
}

// commit drains the events pending at cycle and hands them to apply in
// ascending port order. Ports are numbered in deterministic source order
// at elaboration, so when two ports target the same address the
// highest-numbered port's value survives: last write wins with a
// compile-time tie break, never a runtime race. The drained events are
// returned for the trace.
func (l *writeLog) commit(cycle uint64, apply func(WriteEvent)) []WriteEvent {
	slot := l.pending[cycle]
	if len(slot) == 0 {
		return nil
	}
	delete(l.pending, cycle)
	evs := make([]WriteEvent, 0, len(slot))
	for _, ev := range slot {
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].Port < evs[j].Port })
	for _, ev := range evs {
		apply(ev)
	}
	return evs
}
