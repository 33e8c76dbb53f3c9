package main

import (
	"log"

	ss "github.com/mhoff/seqsim"
)

// A two stage pipeline: the driver feeds numbers to a squarer, the
// squarer accumulates the results into a register file.
func main() {
	d := ss.NewDesign()
	sum := d.Array("sum", 1, 1)

	sq := d.Sequential("square", ss.Backpressure)
	in := sq.Input("in")
	sq.Build(func(b *ss.Body) {
		v := b.Pop(in)
		b.Write(sum, 0, ss.Const(0), ss.Add(ss.Read(sum, ss.Const(0)), ss.Mul(v, v)))
	})

	d.Driver("driver").Build(func(b *ss.Body) {
		b.When(ss.Lt(ss.CycleCount(), ss.Const(10)), func(b *ss.Body) {
			b.Activate(sq.ID(), ss.Arg{Queue: in, Value: ss.CycleCount()})
		})
		b.When(ss.Eq(ss.CycleCount(), ss.Const(12)), func(b *ss.Body) {
			b.Finish()
		})
	})

	e, err := d.Elaborate()
	if err != nil {
		log.Fatal(err)
	}
	e.Observe(func(tr *ss.CycleTrace) {
		for _, w := range tr.Writes {
			log.Printf("cycle %d: port %d <- %d", tr.Cycle, w.Port, w.Value)
		}
	})
	n, err := e.Run(ss.RunConfig{MaxCycles: 100, IdleLimit: 10})
	if err != nil {
		log.Fatal(err)
	}
	v, err := e.ReadArray(sum, 0)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("finished after %d cycles: sum of squares = %d", n, v)
}
