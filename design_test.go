// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim_test

import (
	"strings"
	"testing"

	ss "github.com/mhoff/seqsim"
	"github.com/pkg/errors"
)

func wantStructural(t *testing.T, d *ss.Design, frag string) {
	t.Helper()
	_, err := d.Elaborate()
	se, ok := errors.Cause(err).(*ss.StructuralError)
	if !ok {
		t.Fatalf("expected *StructuralError, got %v", err)
	}
	if !strings.Contains(se.Error(), frag) {
		t.Errorf("error %q does not mention %q", se.Error(), frag)
	}
}

func Test_no_driver(t *testing.T) {
	d := ss.NewDesign()
	d.Sequential("lonely", ss.Systolic).Build(func(b *ss.Body) {})
	wantStructural(t, d, "no driver")
}

func Test_second_driver(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("a")
	d.Driver("b")
	wantStructural(t, d, "second driver")
}

func Test_comb_dependency_cycle(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	c1 := d.Combinational("c1")
	p1 := c1.ExposedPin("v")
	c2 := d.Combinational("c2")
	p2 := c2.ExposedPin("v")
	c1.Build(func(b *ss.Body) { b.Expose(p1, ss.Pin(p2)) })
	c2.Build(func(b *ss.Body) { b.Expose(p2, ss.Pin(p1)) })
	wantStructural(t, d, "dependency cycle")
}

func Test_ambiguous_write_port(t *testing.T) {
	d := ss.NewDesign()
	regs := d.Array("regs", 4, 1)
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Write(regs, 0, ss.Const(0), ss.Const(1))
	})
	st := d.Sequential("other", ss.Systolic)
	st.Build(func(b *ss.Body) {
		// same physical port, different caller: cannot be realized
		b.Write(regs, 0, ss.Const(1), ss.Const(2))
	})
	wantStructural(t, d, "ambiguous write port")
}

func Test_wait_in_combinational(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	d.Combinational("c").Build(func(b *ss.Body) {
		b.Wait(ss.Const(1))
	})
	wantStructural(t, d, "wait in combinational")
}

func Test_pop_foreign_queue(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	owner := d.Sequential("owner", ss.Backpressure)
	q := owner.Input("in")
	owner.Build(func(b *ss.Body) { b.Pop(q) })
	d.Sequential("thief", ss.Systolic).Build(func(b *ss.Body) {
		b.Pop(q)
	})
	wantStructural(t, d, "owned by stage owner")
}

func Test_activate_driver(t *testing.T) {
	d := ss.NewDesign()
	drv := d.Driver("driver")
	d.Sequential("st", ss.Systolic).Build(func(b *ss.Body) {
		b.Activate(drv.ID())
	})
	drv.Build(func(b *ss.Body) {})
	wantStructural(t, d, "cannot activate the driver")
}

func Test_activate_combinational(t *testing.T) {
	d := ss.NewDesign()
	c := d.Combinational("c")
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Activate(c.ID())
	})
	wantStructural(t, d, "cannot activate combinational")
}

func Test_bad_write_port_index(t *testing.T) {
	d := ss.NewDesign()
	regs := d.Array("regs", 4, 2)
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Write(regs, 2, ss.Const(0), ss.Const(1))
	})
	wantStructural(t, d, "no write port 2")
}

func Test_fired_query_of_combinational(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	c := d.Combinational("c")
	c.Build(func(b *ss.Body) {})
	out := d.Array("out", 1, 1)
	d.Combinational("w").Build(func(b *ss.Body) {
		b.Write(out, 0, ss.Const(0), ss.FiredThisCycle(c.ID()))
	})
	wantStructural(t, d, "fired query against combinational")
}

func Test_queue_on_combinational(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	d.Combinational("c").Input("in")
	wantStructural(t, d, "cannot own queue")
}

func Test_negative_credit(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	d.Sequential("st", ss.Systolic).Credit(-1)
	wantStructural(t, d, "negative initial credit")
}

func Test_body_built_twice(t *testing.T) {
	d := ss.NewDesign()
	drv := d.Driver("driver")
	drv.Build(func(b *ss.Body) {})
	drv.Build(func(b *ss.Body) {})
	wantStructural(t, d, "body built twice")
}

func Test_inputs_spec(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {})
	st := d.Sequential("st", ss.Backpressure)
	qs := st.Inputs("op, data[2]")
	if len(qs) != 3 {
		t.Fatalf("declared %d queues, expected 3", len(qs))
	}
	st.Build(func(b *ss.Body) {
		for _, q := range qs {
			b.Pop(q)
		}
	})
	if _, err := d.Elaborate(); err != nil {
		t.Fatal(err)
	}
}

func Test_signal_plan(t *testing.T) {
	d := ss.NewDesign()
	drv := d.Driver("driver")
	regs := d.Array("regs", 4, 1)
	st := d.Sequential("st", ss.Backpressure)
	q := st.Input("in")
	st.Build(func(b *ss.Body) {
		v := b.Pop(q)
		b.When(ss.Gt(v, ss.Const(0)), func(b *ss.Body) {
			b.Write(regs, 0, ss.Const(0), v)
		})
		b.Wait(ss.Const(1))
	})
	drv.Build(func(b *ss.Body) {
		b.Activate(st.ID(), ss.Arg{Queue: q, Value: ss.Const(1)})
	})

	e := elaborate(t, d)
	plan := e.SignalPlan()
	sig := plan[st.ID()]
	if !sig.Sequential || sig.Driver {
		t.Error("stage signals mis-classified")
	}
	// one explicit wait plus the implicit backpressure input wait
	if sig.WaitSites != 2 {
		t.Errorf("wait sites = %d, expected 2", sig.WaitSites)
	}
	if sig.CarrySignals != 1 {
		t.Errorf("carry signals = %d, expected 1", sig.CarrySignals)
	}
	if len(sig.WritePorts) != 1 {
		t.Errorf("write ports = %v, expected one", sig.WritePorts)
	}
	dsig := plan[drv.ID()]
	if !dsig.Driver || len(dsig.WritePorts) != 1 {
		t.Errorf("driver plan %+v, expected driver with one push port", dsig)
	}
}

// Only the owning stage may query a queue's contents. A foreign reader
// evaluated after the owner would observe the owner's same-cycle pops,
// so the answer would depend on evaluation order.
func Test_foreign_queue_query(t *testing.T) {
	d := ss.NewDesign()
	cons := d.Sequential("consumer", ss.Backpressure)
	in := cons.Input("in")
	cons.Build(func(b *ss.Body) { b.Pop(in) })
	watch := d.Combinational("watcher")
	p := watch.ExposedPin("v")
	watch.Build(func(b *ss.Body) { b.Expose(p, ss.Valid(in)) })
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Activate(cons.ID(), ss.Arg{Queue: in, Value: ss.Const(7)})
	})
	wantStructural(t, d, "queue consumer.in owned by stage consumer")
}

// A handle that was never issued, negative included, is rejected at
// build time instead of crashing the builder.
func Test_negative_handle(t *testing.T) {
	d := ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Write(ss.ArrayID(-1), 0, ss.Const(0), ss.Const(1))
	})
	wantStructural(t, d, "unknown array")

	d = ss.NewDesign()
	d.Driver("driver").Build(func(b *ss.Body) {
		b.Pop(ss.QueueID(-1))
	})
	wantStructural(t, d, "unknown queue")
}
