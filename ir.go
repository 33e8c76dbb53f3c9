// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import (
	"github.com/pkg/errors"
)

// An Expr is a node of the frozen intermediate representation that yields
// a value when the engine evaluates it. Conditions are ordinary
// expressions: zero is false, anything else is true.
//
// Expressions are pure except for Read, which consults the enclosing
// predicate frame's read cache so that two identical reads under one
// condition count as a single hardware read port.
//
type Expr interface {
	eval(ec *evalCtx) int64
}

// An Op is one predicated operation in a stage body. Ops are built during
// elaboration, in source order, and never mutated afterwards. Whether an
// op has any observable effect in a given cycle depends solely on the
// predicate carry active at its program point.
type Op interface {
	run(ec *evalCtx) error
}

// evalCtx is the per-stage, per-cycle evaluation state.
type evalCtx struct {
	e      *Engine
	st     *stageDef
	pc     *predCtx
	locals []int64
	err    error // sticky modeling error (bad address etc.)
}

func (ec *evalCtx) fail(err error) int64 {
	if ec.err == nil {
		ec.err = err
	}
	return 0
}

func runOps(ec *evalCtx, ops []Op) error {
	for _, op := range ops {
		if err := op.run(ec); err != nil {
			return err
		}
		if ec.err != nil {
			return ec.err
		}
	}
	return nil
}

// expressions

type exprConst struct{ v int64 }

func (x exprConst) eval(*evalCtx) int64 { return x.v }

// Const returns a constant expression.
//
func Const(v int64) Expr { return exprConst{v} }

type exprLocal struct{ n int }

func (x exprLocal) eval(ec *evalCtx) int64 { return ec.locals[x.n] }

type unaryFn func(int64) int64

type exprUnary struct {
	x  Expr
	fn unaryFn
}

func (x exprUnary) eval(ec *evalCtx) int64 { return x.fn(x.x.eval(ec)) }

type binFn func(a, b int64) int64

type exprBinary struct {
	a, b Expr
	fn   binFn
}

func (x exprBinary) eval(ec *evalCtx) int64 { return x.fn(x.a.eval(ec), x.b.eval(ec)) }

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Not returns the logical negation of x.
//
func Not(x Expr) Expr { return exprUnary{x, func(v int64) int64 { return b2i(v == 0) }} }

// Neg returns the arithmetic negation of x.
//
func Neg(x Expr) Expr { return exprUnary{x, func(v int64) int64 { return -v }} }

// Arithmetic and bitwise operators.
func Add(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return x + y }} }
func Sub(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return x - y }} }
func Mul(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return x * y }} }
func BitAnd(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return x & y }}
}
func BitOr(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return x | y }}
}
func BitXor(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return x ^ y }}
}
func Shl(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return x << uint(y) }}
}
func Shr(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return x >> uint(y) }}
}

// Comparisons yield 1 or 0.
func Eq(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x == y) }} }
func Ne(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x != y) }} }
func Lt(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x < y) }} }
func Le(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x <= y) }} }
func Gt(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x > y) }} }
func Ge(a, b Expr) Expr { return exprBinary{a, b, func(x, y int64) int64 { return b2i(x >= y) }} }

// And returns the logical conjunction of a and b.
//
func And(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return b2i(x != 0 && y != 0) }}
}

// Or returns the logical disjunction of a and b.
//
func Or(a, b Expr) Expr {
	return exprBinary{a, b, func(x, y int64) int64 { return b2i(x != 0 || y != 0) }}
}

type exprRead struct {
	arr ArrayID
	idx Expr
}

func (x exprRead) eval(ec *evalCtx) int64 {
	idx := x.idx.eval(ec)
	if v, ok := ec.pc.cachedRead(x.arr, idx); ok {
		return v
	}
	a := ec.e.arrays[x.arr]
	if idx < 0 || idx >= int64(len(a)) {
		return ec.fail(errors.Errorf("stage %s: array %s index %d out of range [0,%d)",
			ec.st.name, ec.e.d.arrays[x.arr].name, idx, len(a)))
	}
	v := a[idx]
	ec.pc.cacheRead(x.arr, idx, v)
	return v
}

// Read returns the value of a[idx] as committed at the start of the
// current cycle. Writes submitted during the cycle are never visible.
//
func Read(a ArrayID, idx Expr) Expr { return exprRead{a, idx} }

type exprHead struct{ q QueueID }

func (x exprHead) eval(ec *evalCtx) int64 {
	v, ok := ec.e.queueHead(x.q)
	if !ok {
		return 0
	}
	return v
}

// Head returns the front element of q visible this cycle, or 0 when q is
// empty. Earlier pops in the same body advance the element Head sees.
// Only the stage owning q may query it; elaboration rejects a foreign
// reader.
//
func Head(q QueueID) Expr { return exprHead{q} }

type exprValid struct{ q QueueID }

func (x exprValid) eval(ec *evalCtx) int64 { return b2i(ec.e.queueLen(x.q) > 0) }

// Valid returns 1 when q holds at least one element visible this cycle.
// Like Head, it is restricted to the owning stage.
//
func Valid(q QueueID) Expr { return exprValid{q} }

type exprCycle struct{}

func (exprCycle) eval(ec *evalCtx) int64 { return int64(ec.e.cycle) }

// CycleCount returns the current cycle number, the way a free-running
// hardware counter would expose it.
//
func CycleCount() Expr { return exprCycle{} }

type exprPin struct{ p PinID }

func (x exprPin) eval(ec *evalCtx) int64 { return ec.e.pins[x.p] }

// Pin returns the value exposed on p this cycle. The producing stage is
// ordered before any reader, so the value is never stale.
//
func Pin(p PinID) Expr { return exprPin{p} }

type exprFired struct{ s StageID }

func (x exprFired) eval(ec *evalCtx) int64 { return b2i(ec.e.fired[x.s]) }

// FiredThisCycle returns 1 when stage s has fired during the current
// cycle. The query is only valid from a stage ordered after s; Elaborate
// rejects any other arrangement.
//
func FiredThisCycle(s StageID) Expr { return exprFired{s} }

// operations

type opLet struct {
	n int
	x Expr
}

func (o opLet) run(ec *evalCtx) error {
	ec.locals[o.n] = o.x.eval(ec)
	return nil
}

type opPredicate struct {
	cond Expr
	ops  []Op
}

func (o opPredicate) run(ec *evalCtx) error {
	c := o.cond.eval(ec)
	ec.pc.enter(c != 0)
	err := runOps(ec, o.ops)
	ec.pc.exit()
	return err
}

type opWrite struct {
	arr  ArrayID
	port WritePortID
	idx  Expr
	val  Expr
}

func (o opWrite) run(ec *evalCtx) error {
	idx, val := o.idx.eval(ec), o.val.eval(ec)
	if !ec.pc.carry() {
		return nil
	}
	a := ec.e.arrays[o.arr]
	if idx < 0 || idx >= int64(len(a)) {
		return errors.Errorf("stage %s: array %s write index %d out of range [0,%d)",
			ec.st.name, ec.e.d.arrays[o.arr].name, idx, len(a))
	}
	return ec.e.log.submit(o.port, ec.e.cycle, idx, val)
}

type opPush struct {
	q    QueueID
	port WritePortID
	val  Expr
}

func (o opPush) run(ec *evalCtx) error {
	val := o.val.eval(ec)
	if !ec.pc.carry() {
		return nil
	}
	return ec.e.log.submit(o.port, ec.e.cycle, 0, val)
}

type opPop struct {
	q QueueID
	n int
}

func (o opPop) run(ec *evalCtx) error {
	if !ec.pc.carry() {
		// the local still binds to the would-be head so that datapath
		// evaluation stays deterministic under a false carry
		v, _ := ec.e.queueHead(o.q)
		ec.locals[o.n] = v
		return nil
	}
	v, err := ec.e.popQueue(o.q)
	if err != nil {
		return err
	}
	ec.locals[o.n] = v
	return nil
}

type opActivate struct {
	target StageID
	pushes []opPush
}

func (o opActivate) run(ec *evalCtx) error {
	for _, p := range o.pushes {
		if err := p.run(ec); err != nil {
			return err
		}
	}
	if ec.pc.carry() {
		ec.e.requestActivation(o.target)
	}
	return nil
}

type opWait struct{ cond Expr }

func (o opWait) run(ec *evalCtx) error {
	if !ec.pc.carry() {
		return nil
	}
	if o.cond.eval(ec) == 0 {
		// retry on a later cycle; everything executed so far stands
		return errBlocked
	}
	return nil
}

type opExpose struct {
	p   PinID
	val Expr
}

func (o opExpose) run(ec *evalCtx) error {
	v := o.val.eval(ec)
	if ec.pc.carry() {
		ec.e.pins[o.p] = v
	}
	return nil
}

type opFinish struct{}

func (o opFinish) run(ec *evalCtx) error {
	if ec.pc.carry() {
		ec.e.finishReq = true
	}
	return nil
}

type opMemRead struct {
	res  int
	addr Expr
	acc  int // local receiving the accepted signal
}

func (o opMemRead) run(ec *evalCtx) error {
	addr := o.addr.eval(ec)
	// the carry is the request's enable; a request is never issued
	// under a false enable
	if !ec.pc.carry() {
		ec.locals[o.acc] = 0
		return nil
	}
	ec.locals[o.acc] = b2i(ec.e.resources[o.res].res.SendRead(addr))
	return nil
}

type opMemWrite struct {
	res  int
	addr Expr
	data Expr
	acc  int
}

func (o opMemWrite) run(ec *evalCtx) error {
	addr, data := o.addr.eval(ec), o.data.eval(ec)
	if !ec.pc.carry() {
		ec.locals[o.acc] = 0
		return nil
	}
	ec.locals[o.acc] = b2i(ec.e.resources[o.res].res.SendWrite(addr, data))
	return nil
}

type opMemPoll struct {
	res  int
	has  int
	data int
}

func (o opMemPoll) run(ec *evalCtx) error {
	r := ec.e.resources[o.res].res
	if r.HasResponse() && ec.pc.carry() {
		ec.locals[o.has] = 1
		ec.locals[o.data] = r.TakeResponse()
	} else {
		ec.locals[o.has] = 0
		ec.locals[o.data] = 0
	}
	return nil
}
