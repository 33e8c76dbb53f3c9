// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import (
	"github.com/pkg/errors"
)

// Identity of every elaborated entity is a small integer handle issued in
// declaration order. Handles hash and compare trivially and make
// ownership unambiguous; nothing in the engine relies on pointer
// identity.
type (
	// StageID identifies a sequential or combinational stage.
	StageID int
	// ArrayID identifies a register file.
	ArrayID int
	// QueueID identifies a stage input queue.
	QueueID int
	// PinID identifies a combinational value exposed by a stage.
	PinID int
	// WritePortID identifies one physical writer of an array or queue.
	// Ports are numbered across the whole design in source order.
	WritePortID int
	// ResourceID identifies an external memory resource.
	ResourceID int
)

// TimingPolicy selects how a sequential stage treats its input queues.
type TimingPolicy int

const (
	// Backpressure blocks the stage until every declared input queue
	// holds data, via an implicit leading wait.
	Backpressure TimingPolicy = iota
	// Systolic assumes upstream-guaranteed arrival and pops
	// unconditionally, with no implicit wait.
	Systolic
)

// Arbitration selects how simultaneous same-cycle activations of a stage
// are treated.
type Arbitration int

const (
	// CombineCallers merges simultaneous requests: each call site gets
	// its own queue write port and the credits accumulate. The body is
	// responsible for draining only what its queues actually hold.
	CombineCallers Arbitration = iota
	// ExplicitArbitration gives each queue a single shared write port;
	// simultaneous callers collide and the design must arbitrate.
	ExplicitArbitration
)

type stageKind int

const (
	seqStage stageKind = iota
	combStage
)

type stageDef struct {
	id      StageID
	name    string
	kind    stageKind
	driver  bool
	timing  TimingPolicy
	arb     Arbitration
	credit  int64 // initial credit
	inputs  []QueueID
	body    []Op
	nlocals int
	waits   int // explicit wait sites
}

type arrayDef struct {
	id    ArrayID
	name  string
	size  int
	owner StageID // -1 for the design root
	ports []WritePortID
}

type queueDef struct {
	id    QueueID
	name  string
	owner StageID
	port  WritePortID // shared push port, -1 under CombineCallers
}

type pinDef struct {
	id    PinID
	name  string
	owner StageID
}

type portKind int

const (
	arrayPort portKind = iota
	queuePort
)

type portDef struct {
	id    WritePortID
	kind  portKind
	arr   ArrayID
	queue QueueID
	// user is the stage whose body drives this port, or -1 while
	// unclaimed. A second distinct user is an ambiguous port.
	user StageID
}

type resourceDef struct {
	id   ResourceID
	name string
	res  MemResource
}

// A Design is the explicit elaboration context. All stages, storage and
// bodies are declared through it; Elaborate freezes the result into an
// Engine. There is no hidden global builder state.
type Design struct {
	stages    []*stageDef
	arrays    []*arrayDef
	queues    []*queueDef
	pins      []*pinDef
	ports     []portDef
	resources []resourceDef
	err       error // first construction error, surfaced by Elaborate
}

// NewDesign returns an empty elaboration context.
//
func NewDesign() *Design {
	return &Design{}
}

func (d *Design) fail(stage, format string, args ...interface{}) {
	if d.err == nil {
		d.err = &StructuralError{Stage: stage, Msg: errors.Errorf(format, args...).Error()}
	}
}

func (d *Design) allocPort(k portKind, arr ArrayID, q QueueID) WritePortID {
	id := WritePortID(len(d.ports))
	d.ports = append(d.ports, portDef{id: id, kind: k, arr: arr, queue: q, user: -1})
	return id
}

// claimPort records the stage driving a write port. A port driven by two
// distinct stages without explicit differentiation cannot be realized.
func (d *Design) claimPort(p WritePortID, s StageID, shared bool) {
	pd := &d.ports[p]
	if pd.user < 0 || pd.user == s || shared {
		if pd.user < 0 {
			pd.user = s
		}
		return
	}
	d.fail(d.stages[s].name, "ambiguous write port %d: already driven by stage %s",
		p, d.stages[pd.user].name)
}

// A Stage is a builder handle for one declared stage.
type Stage struct {
	d   *Design
	def *stageDef
}

// ID returns the stage's handle.
func (s *Stage) ID() StageID { return s.def.id }

func (d *Design) addStage(name string, k stageKind) *Stage {
	def := &stageDef{id: StageID(len(d.stages)), name: name, kind: k}
	d.stages = append(d.stages, def)
	return &Stage{d: d, def: def}
}

// Driver declares the distinguished driver stage: infinite credit,
// evaluated unconditionally every cycle, the system's sole clock source.
// A design holds exactly one.
//
func (d *Design) Driver(name string) *Stage {
	for _, st := range d.stages {
		if st.driver {
			d.fail(name, "second driver declared (first was %s)", st.name)
		}
	}
	s := d.addStage(name, seqStage)
	s.def.driver = true
	s.def.timing = Systolic
	return s
}

// Sequential declares a credit-driven sequential stage.
//
func (d *Design) Sequential(name string, t TimingPolicy) *Stage {
	s := d.addStage(name, seqStage)
	s.def.timing = t
	return s
}

// Combinational declares an always-on stage with no credit and no queues.
// Its body is re-evaluated every cycle and holds no persistent state.
//
func (d *Design) Combinational(name string) *Stage {
	return d.addStage(name, combStage)
}

// Arbitrate overrides the stage's arbitration mode.
func (s *Stage) Arbitrate(a Arbitration) *Stage {
	s.def.arb = a
	return s
}

// Credit sets the stage's initial credit.
func (s *Stage) Credit(n int) *Stage {
	if n < 0 {
		s.d.fail(s.def.name, "negative initial credit %d", n)
		return s
	}
	s.def.credit = int64(n)
	return s
}

// Input declares one named input queue owned by the stage.
//
func (s *Stage) Input(name string) QueueID {
	if s.def.kind != seqStage {
		s.d.fail(s.def.name, "combinational stage cannot own queue %s", name)
	}
	q := &queueDef{id: QueueID(len(s.d.queues)), name: s.def.name + "." + name, owner: s.def.id, port: -1}
	if s.def.arb == ExplicitArbitration {
		q.port = s.d.allocPort(queuePort, -1, q.id)
	}
	s.d.queues = append(s.d.queues, q)
	s.def.inputs = append(s.def.inputs, q.id)
	return q.id
}

// Inputs declares a group of input queues from a bus-style spec string,
// e.g. "op, data[2]" declares op, data[0] and data[1].
//
func (s *Stage) Inputs(spec string) []QueueID {
	names, err := expandDecl(spec)
	if err != nil {
		s.d.fail(s.def.name, "inputs %q: %v", spec, err)
		return nil
	}
	qs := make([]QueueID, len(names))
	for i, n := range names {
		qs[i] = s.Input(n)
	}
	return qs
}

// ExposedPin declares a combinational value the stage exposes to others.
//
func (s *Stage) ExposedPin(name string) PinID {
	p := &pinDef{id: PinID(len(s.d.pins)), name: s.def.name + "." + name, owner: s.def.id}
	s.d.pins = append(s.d.pins, p)
	return p.id
}

// Array declares a root-owned register file with the given number of
// write ports. Port numbers are fixed here, at elaboration time, and
// returned as global ids in ascending source order.
//
func (d *Design) Array(name string, size, writePorts int) ArrayID {
	return d.array(name, size, writePorts, -1)
}

// Array declares a register file owned by the stage.
func (s *Stage) Array(name string, size, writePorts int) ArrayID {
	return s.d.array(s.def.name+"."+name, size, writePorts, s.def.id)
}

func (d *Design) array(name string, size, writePorts int, owner StageID) ArrayID {
	if size <= 0 {
		d.fail("", "array %s: size must be > 0", name)
		size = 1
	}
	if writePorts <= 0 {
		d.fail("", "array %s: at least one write port required", name)
		writePorts = 1
	}
	a := &arrayDef{id: ArrayID(len(d.arrays)), name: name, size: size, owner: owner}
	for i := 0; i < writePorts; i++ {
		a.ports = append(a.ports, d.allocPort(arrayPort, a.id, -1))
	}
	d.arrays = append(d.arrays, a)
	return a.id
}

// Resource registers an external memory resource the design may target
// with read and write requests.
//
func (d *Design) Resource(name string, res MemResource) ResourceID {
	if res == nil {
		d.fail("", "resource %s: nil MemResource", name)
	}
	r := resourceDef{id: ResourceID(len(d.resources)), name: name, res: res}
	d.resources = append(d.resources, r)
	return r.id
}

// An Arg carries one activation argument: the value is pushed into the
// target's queue in the same cycle the activation request is issued.
type Arg struct {
	Queue QueueID
	Value Expr
}

// A Body builds the ordered, predicated operation list of one stage.
// Nested When calls produce runtime Predicate nodes; ordinary Go control
// flow during building decides which nodes exist at all. The two must
// never be conflated: the former is evaluated every cycle, the latter
// only shapes the frozen IR.
type Body struct {
	d   *Design
	st  *stageDef
	ops *[]Op
}

// Build runs fn to construct the stage body.
//
func (s *Stage) Build(fn func(b *Body)) {
	if s.def.body != nil {
		s.d.fail(s.def.name, "body built twice")
		return
	}
	s.def.body = []Op{}
	b := &Body{d: s.d, st: s.def, ops: &s.def.body}
	fn(b)
}

func (b *Body) append(op Op) { *b.ops = append(*b.ops, op) }

func (b *Body) local() int {
	n := b.st.nlocals
	b.st.nlocals++
	return n
}

// Let evaluates x once at this program point and returns a reference to
// the bound value.
func (b *Body) Let(x Expr) Expr {
	n := b.local()
	b.append(opLet{n: n, x: x})
	return exprLocal{n}
}

// When appends a runtime predicate block. Operations built inside fn only
// take effect in cycles where cond, ANDed with every enclosing condition,
// is true.
//
func (b *Body) When(cond Expr, fn func(b *Body)) {
	op := opPredicate{cond: cond}
	inner := &Body{d: b.d, st: b.st, ops: &op.ops}
	fn(inner)
	b.append(op)
}

// Write submits a[idx] = val through the array's port-th write port.
//
func (b *Body) Write(a ArrayID, port int, idx, val Expr) {
	if a < 0 || int(a) >= len(b.d.arrays) {
		b.d.fail(b.st.name, "write to unknown array %d", a)
		return
	}
	ad := b.d.arrays[a]
	if port < 0 || port >= len(ad.ports) {
		b.d.fail(b.st.name, "array %s has no write port %d", ad.name, port)
		return
	}
	p := ad.ports[port]
	b.d.claimPort(p, b.st.id, false)
	b.append(opWrite{arr: a, port: p, idx: idx, val: val})
}

func (b *Body) pushOp(q QueueID, val Expr) (opPush, bool) {
	if q < 0 || int(q) >= len(b.d.queues) {
		b.d.fail(b.st.name, "push to unknown queue %d", q)
		return opPush{}, false
	}
	qd := b.d.queues[q]
	owner := b.d.stages[qd.owner]
	port := qd.port
	if owner.arb == CombineCallers {
		// one physical port per call site, numbered in source order,
		// so simultaneous callers combine instead of colliding
		port = b.d.allocPort(queuePort, -1, q)
	}
	b.d.claimPort(port, b.st.id, owner.arb == ExplicitArbitration)
	return opPush{q: q, port: port, val: val}, true
}

// Push appends val to the queue. The element is journaled this cycle and
// becomes visible to pops and validity queries after the commit boundary.
//
func (b *Body) Push(q QueueID, val Expr) {
	if op, ok := b.pushOp(q, val); ok {
		b.append(op)
	}
}

// Pop removes the front visible element of the stage's own queue and
// returns a reference to it. Under a false carry the pop has no effect.
//
func (b *Body) Pop(q QueueID) Expr {
	if q < 0 || int(q) >= len(b.d.queues) {
		b.d.fail(b.st.name, "pop of unknown queue %d", q)
		return Const(0)
	}
	if b.d.queues[q].owner != b.st.id {
		b.d.fail(b.st.name, "pop of queue %s owned by stage %s",
			b.d.queues[q].name, b.d.stages[b.d.queues[q].owner].name)
		return Const(0)
	}
	n := b.local()
	b.append(opPop{q: q, n: n})
	return exprLocal{n}
}

// Activate issues an asynchronous invocation of the target stage: each
// argument is pushed into the named queue and the target's credit is
// incremented by one, all effective at the commit boundary.
//
func (b *Body) Activate(target StageID, args ...Arg) {
	if target < 0 || int(target) >= len(b.d.stages) {
		b.d.fail(b.st.name, "activation of unknown stage %d", target)
		return
	}
	t := b.d.stages[target]
	if t.kind != seqStage {
		b.d.fail(b.st.name, "cannot activate combinational stage %s", t.name)
		return
	}
	if t.driver {
		b.d.fail(b.st.name, "cannot activate the driver %s", t.name)
		return
	}
	op := opActivate{target: target}
	for _, a := range args {
		if p, ok := b.pushOp(a.Queue, a.Value); ok {
			if b.d.queues[a.Queue].owner != target {
				b.d.fail(b.st.name, "activation argument queue %s not owned by %s",
					b.d.queues[a.Queue].name, t.name)
			}
			op.pushes = append(op.pushes, p)
		}
	}
	b.append(op)
}

// Wait blocks the stage until cond is true. When cond is false the stage
// has not fired this cycle, keeps its credit and retries on a later
// cycle; operations before the wait have already taken effect and are
// never rolled back.
//
func (b *Body) Wait(cond Expr) {
	if b.st.kind != seqStage {
		b.d.fail(b.st.name, "wait in combinational stage")
		return
	}
	b.st.waits++
	b.append(opWait{cond: cond})
}

// Expose drives the stage's pin with val for the current cycle.
//
func (b *Body) Expose(p PinID, val Expr) {
	if p < 0 || int(p) >= len(b.d.pins) || b.d.pins[p].owner != b.st.id {
		b.d.fail(b.st.name, "expose of pin not owned by stage")
		return
	}
	b.append(opExpose{p: p, val: val})
}

// Finish requests a clean end of the run at this cycle's commit.
func (b *Body) Finish() {
	b.append(opFinish{})
}

// SendReadRequest issues a read request to the resource and returns the
// same-cycle accepted signal. The enclosing predicate carry is the
// request's enable: under a false carry no request is issued.
//
func (b *Body) SendReadRequest(r ResourceID, addr Expr) Expr {
	if r < 0 || int(r) >= len(b.d.resources) {
		b.d.fail(b.st.name, "request to unknown resource %d", r)
		return Const(0)
	}
	n := b.local()
	b.append(opMemRead{res: int(r), addr: addr, acc: n})
	return exprLocal{n}
}

// SendWriteRequest issues a write request to the resource and returns the
// same-cycle accepted signal.
//
func (b *Body) SendWriteRequest(r ResourceID, addr, data Expr) Expr {
	if r < 0 || int(r) >= len(b.d.resources) {
		b.d.fail(b.st.name, "request to unknown resource %d", r)
		return Const(0)
	}
	n := b.local()
	b.append(opMemWrite{res: int(r), addr: addr, data: data, acc: n})
	return exprLocal{n}
}

// PollResponse polls the resource for a response. has is 1 when a
// response was consumed this cycle, in which case data holds it.
//
func (b *Body) PollResponse(r ResourceID) (has, data Expr) {
	if r < 0 || int(r) >= len(b.d.resources) {
		b.d.fail(b.st.name, "poll of unknown resource %d", r)
		return Const(0), Const(0)
	}
	h, v := b.local(), b.local()
	b.append(opMemPoll{res: int(r), has: h, data: v})
	return exprLocal{h}, exprLocal{v}
}
