// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

// Static traversal of the frozen IR. Elaboration uses it to derive the
// evaluation order; the hardware back end uses it (through SignalPlan) to
// enumerate the synthesizable structure.

type irVisitor struct {
	pin   func(PinID)
	fired func(StageID)
	queue func(QueueID) // Head and Valid queries
	write func(opWrite)
	push  func(opPush)
	wait  func(opWait)
	pred  func(opPredicate)
}

func (v *irVisitor) expr(e Expr) {
	switch x := e.(type) {
	case exprUnary:
		v.expr(x.x)
	case exprBinary:
		v.expr(x.a)
		v.expr(x.b)
	case exprRead:
		v.expr(x.idx)
	case exprHead:
		if v.queue != nil {
			v.queue(x.q)
		}
	case exprValid:
		if v.queue != nil {
			v.queue(x.q)
		}
	case exprPin:
		if v.pin != nil {
			v.pin(x.p)
		}
	case exprFired:
		if v.fired != nil {
			v.fired(x.s)
		}
	}
}

func (v *irVisitor) ops(ops []Op) {
	for _, op := range ops {
		v.op(op)
	}
}

func (v *irVisitor) op(op Op) {
	switch o := op.(type) {
	case opLet:
		v.expr(o.x)
	case opPredicate:
		if v.pred != nil {
			v.pred(o)
		}
		v.expr(o.cond)
		v.ops(o.ops)
	case opWrite:
		if v.write != nil {
			v.write(o)
		}
		v.expr(o.idx)
		v.expr(o.val)
	case opPush:
		if v.push != nil {
			v.push(o)
		}
		v.expr(o.val)
	case opActivate:
		for _, p := range o.pushes {
			v.op(p)
		}
	case opWait:
		if v.wait != nil {
			v.wait(o)
		}
		v.expr(o.cond)
	case opExpose:
		v.expr(o.val)
	case opMemRead:
		v.expr(o.addr)
	case opMemWrite:
		v.expr(o.addr)
		v.expr(o.data)
	}
}
