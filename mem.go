// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

// A MemResource is the contract with the external memory subsystem. The
// engine guarantees that SendRead and SendWrite are only called when the
// issuing operation's enable predicate carries true; it does not model
// the resource's internal latency. Tick is called once per cycle, at the
// commit boundary.
type MemResource interface {
	// SendRead issues a read request and reports whether the resource
	// accepted it this cycle.
	SendRead(addr int64) bool
	// SendWrite issues a write request and reports acceptance.
	SendWrite(addr, data int64) bool
	// HasResponse reports whether a response is ready to be taken.
	HasResponse() bool
	// TakeResponse consumes and returns the oldest ready response.
	TakeResponse() int64
	// Tick advances the resource by one cycle.
	Tick()
}

// FixedLatencyRAM is a minimal in-package resource model: single
// outstanding request, fixed response latency, word addressed. It exists
// for tests and demos; real runs inject the external DRAM model behind
// the same interface.
type FixedLatencyRAM struct {
	Latency int

	words   []int64
	pending bool
	isRead  bool
	addr    int64
	data    int64
	left    int
	ready   bool
	resp    int64
}

// NewFixedLatencyRAM returns a RAM of the given word count.
//
func NewFixedLatencyRAM(size, latency int) *FixedLatencyRAM {
	return &FixedLatencyRAM{Latency: latency, words: make([]int64, size)}
}

func (m *FixedLatencyRAM) SendRead(addr int64) bool {
	if m.pending || m.ready || addr < 0 || addr >= int64(len(m.words)) {
		return false
	}
	m.pending, m.isRead, m.addr, m.left = true, true, addr, m.Latency
	return true
}

func (m *FixedLatencyRAM) SendWrite(addr, data int64) bool {
	if m.pending || m.ready || addr < 0 || addr >= int64(len(m.words)) {
		return false
	}
	m.pending, m.isRead, m.addr, m.data, m.left = true, false, addr, data, m.Latency
	return true
}

func (m *FixedLatencyRAM) HasResponse() bool { return m.ready }

func (m *FixedLatencyRAM) TakeResponse() int64 {
	if !m.ready {
		return 0
	}
	m.ready = false
	return m.resp
}

func (m *FixedLatencyRAM) Tick() {
	if !m.pending {
		return
	}
	if m.left > 0 {
		m.left--
		return
	}
	m.pending = false
	if m.isRead {
		m.resp = m.words[m.addr]
	} else {
		m.words[m.addr] = m.data
		m.resp = 0
	}
	m.ready = true
}

// Word returns the committed memory word at addr, for tests.
func (m *FixedLatencyRAM) Word(addr int64) int64 { return m.words[addr] }
