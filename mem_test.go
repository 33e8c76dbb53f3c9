// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim_test

import (
	"testing"

	ss "github.com/mhoff/seqsim"
)

func Test_fixed_latency_ram(t *testing.T) {
	m := ss.NewFixedLatencyRAM(8, 2)
	if !m.SendWrite(3, 42) {
		t.Fatal("idle RAM refused a write")
	}
	if m.SendRead(3) {
		t.Error("busy RAM accepted a second request")
	}
	for i := 0; i < 2; i++ {
		if m.HasResponse() {
			t.Fatalf("response ready after %d ticks, latency is 2", i)
		}
		m.Tick()
	}
	m.Tick()
	if !m.HasResponse() {
		t.Fatal("no response after latency elapsed")
	}
	m.TakeResponse()
	if m.Word(3) != 42 {
		t.Errorf("word 3 = %d, expected 42", m.Word(3))
	}

	if !m.SendRead(3) {
		t.Fatal("idle RAM refused a read")
	}
	m.Tick()
	m.Tick()
	m.Tick()
	if !m.HasResponse() {
		t.Fatal("no read response")
	}
	if v := m.TakeResponse(); v != 42 {
		t.Errorf("read response = %d, expected 42", v)
	}
	if m.HasResponse() {
		t.Error("response must be consumed exactly once")
	}

	if m.SendRead(8) {
		t.Error("out of range address accepted")
	}
}

// A driver runs a small request state machine against the RAM: write a
// word, wait for the ack, read it back, store the response and finish.
func Test_memory_roundtrip(t *testing.T) {
	ram := ss.NewFixedLatencyRAM(8, 2)
	d := ss.NewDesign()
	res := d.Resource("ram", ram)
	state := d.Array("state", 1, 1)
	out := d.Array("out", 1, 1)

	d.Driver("driver").Build(func(b *ss.Body) {
		s := b.Let(ss.Read(state, ss.Const(0)))
		b.When(ss.Eq(s, ss.Const(0)), func(b *ss.Body) {
			acc := b.SendWriteRequest(res, ss.Const(3), ss.Const(42))
			b.When(acc, func(b *ss.Body) {
				b.Write(state, 0, ss.Const(0), ss.Const(1))
			})
		})
		b.When(ss.Eq(s, ss.Const(1)), func(b *ss.Body) {
			has, _ := b.PollResponse(res)
			b.When(has, func(b *ss.Body) {
				b.Write(state, 0, ss.Const(0), ss.Const(2))
			})
		})
		b.When(ss.Eq(s, ss.Const(2)), func(b *ss.Body) {
			acc := b.SendReadRequest(res, ss.Const(3))
			b.When(acc, func(b *ss.Body) {
				b.Write(state, 0, ss.Const(0), ss.Const(3))
			})
		})
		b.When(ss.Eq(s, ss.Const(3)), func(b *ss.Body) {
			has, data := b.PollResponse(res)
			b.When(has, func(b *ss.Body) {
				b.Write(out, 0, ss.Const(0), data)
				b.Finish()
			})
		})
	})

	e := elaborate(t, d)
	if _, err := e.Run(ss.RunConfig{MaxCycles: 50}); err != nil {
		t.Fatal(err)
	}
	if v := readArray(t, e, out, 0); v != 42 {
		t.Errorf("out = %d, expected the round-tripped 42", v)
	}
	if ram.Word(3) != 42 {
		t.Errorf("ram word 3 = %d, expected 42", ram.Word(3))
	}
}

// countingRes counts requests so the enable contract is checkable.
type countingRes struct {
	reads, writes int
}

func (c *countingRes) SendRead(int64) bool { c.reads++; return true }

func (c *countingRes) SendWrite(int64, int64) bool { c.writes++; return true }

func (c *countingRes) HasResponse() bool { return false }

func (c *countingRes) TakeResponse() int64 { return 0 }

func (c *countingRes) Tick() {}

// A request under a false enable predicate must never reach the
// resource.
func Test_request_enable_gating(t *testing.T) {
	cr := &countingRes{}
	d := ss.NewDesign()
	res := d.Resource("mem", cr)
	d.Driver("driver").Build(func(b *ss.Body) {
		b.When(ss.Const(0), func(b *ss.Body) {
			b.SendReadRequest(res, ss.Const(1))
			b.SendWriteRequest(res, ss.Const(1), ss.Const(2))
		})
		b.When(ss.Const(1), func(b *ss.Body) {
			b.SendReadRequest(res, ss.Const(0))
		})
	})

	e := elaborate(t, d)
	step(t, e, 3)
	if cr.writes != 0 {
		t.Errorf("%d write requests issued under a false enable", cr.writes)
	}
	if cr.reads != 3 {
		t.Errorf("reads = %d, expected one per cycle from the enabled site", cr.reads)
	}
}
