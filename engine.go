// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import (
	"strings"

	"github.com/pkg/errors"
)

// RunConfig bounds a simulation run. It is handed to Run as a plain
// parameter; the engine has no other configuration surface.
type RunConfig struct {
	// MaxCycles is the hard cycle limit.
	MaxCycles uint64
	// IdleLimit aborts the run after this many consecutive cycles
	// without progress (no stage fired besides the driver and nothing
	// committed). Zero disables idle detection.
	IdleLimit uint64
}

func (c RunConfig) validate() error {
	if c.MaxCycles == 0 {
		return errors.New("run config: max cycles must be > 0")
	}
	return nil
}

// An Engine executes one elaborated design cycle by cycle. It is a plain
// value over the frozen IR: no globals, no goroutines, no wall-clock
// dependence. Everything observable follows from the design and the
// injected memory resources.
type Engine struct {
	d     *Design
	order []StageID

	cycle  uint64
	arrays [][]int64 // committed register state
	queues [][]int64 // committed queue state
	sched  *creditSched
	log    *writeLog

	// per-cycle evaluation state
	pins     []int64
	fired    []bool
	popOff   []int // per-queue pops taken this cycle
	eligible []bool

	resources []resourceDef

	finishReq bool
	finished  bool
	progress  bool
	obs       func(*CycleTrace)
}

// Elaborate freezes the design and returns a runnable engine. All
// structural errors are surfaced here: construction errors recorded by
// the builder, a missing driver, and dependency cycles among the
// combinational evaluation order.
//
func (d *Design) Elaborate() (*Engine, error) {
	if d.err != nil {
		return nil, d.err
	}
	driver := false
	for _, st := range d.stages {
		if st.driver {
			driver = true
		}
	}
	if !driver {
		return nil, &StructuralError{Msg: "no driver declared"}
	}

	g := newDepGraph(len(d.stages))
	var serr error
	for _, st := range d.stages {
		sid := st.id
		v := &irVisitor{
			pin: func(p PinID) {
				g.addEdge(d.pins[p].owner, sid)
			},
			fired: func(s StageID) {
				if d.stages[s].kind != seqStage {
					if serr == nil {
						serr = &StructuralError{Stage: d.stages[sid].name,
							Msg: "fired query against combinational stage " + d.stages[s].name}
					}
					return
				}
				g.addEdge(s, sid)
			},
			// queue contents are only readable by the owning stage:
			// a foreign reader would observe the owner's same-cycle
			// pops depending on evaluation order
			queue: func(q QueueID) {
				if serr != nil {
					return
				}
				if q < 0 || int(q) >= len(d.queues) {
					serr = &StructuralError{Stage: d.stages[sid].name,
						Msg: "query of unknown queue"}
					return
				}
				if d.queues[q].owner != sid {
					serr = &StructuralError{Stage: d.stages[sid].name,
						Msg: "query of queue " + d.queues[q].name +
							" owned by stage " + d.stages[d.queues[q].owner].name}
				}
			},
		}
		v.ops(st.body)
	}
	if serr != nil {
		return nil, serr
	}
	order, cyclic := g.order()
	if cyclic != nil {
		names := make([]string, len(cyclic))
		for i, s := range cyclic {
			names[i] = d.stages[s].name
		}
		return nil, &StructuralError{Msg: "combinational dependency cycle: " + strings.Join(names, ", ")}
	}

	e := &Engine{
		d:         d,
		order:     order,
		arrays:    make([][]int64, len(d.arrays)),
		queues:    make([][]int64, len(d.queues)),
		sched:     newCreditSched(len(d.stages)),
		log:       newWriteLog(),
		pins:      make([]int64, len(d.pins)),
		fired:     make([]bool, len(d.stages)),
		popOff:    make([]int, len(d.queues)),
		eligible:  make([]bool, len(d.stages)),
		resources: d.resources,
	}
	for i, a := range d.arrays {
		e.arrays[i] = make([]int64, a.size)
	}
	for _, st := range d.stages {
		e.sched.credits[st.id] = st.credit
	}
	return e, nil
}

// Observe registers a callback invoked after every commit with that
// cycle's trace. This is the feed the simulator back end consumes.
func (e *Engine) Observe(fn func(*CycleTrace)) { e.obs = fn }

// Cycle returns the number of completed cycles.
func (e *Engine) Cycle() uint64 { return e.cycle }

// Finished reports whether a Finish operation has committed.
func (e *Engine) Finished() bool { return e.finished }

// Credit returns the committed credit counter of stage s.
func (e *Engine) Credit(s StageID) int64 { return e.sched.credit(s) }

// Fired reports whether stage s fired during the last evaluated cycle.
func (e *Engine) Fired(s StageID) bool { return e.fired[s] }

// ReadArray returns the committed value of a[idx].
func (e *Engine) ReadArray(a ArrayID, idx int64) (int64, error) {
	arr := e.arrays[a]
	if idx < 0 || idx >= int64(len(arr)) {
		return 0, errors.Errorf("array %s: index %d out of range [0,%d)",
			e.d.arrays[a].name, idx, len(arr))
	}
	return arr[idx], nil
}

// LoadArray presets the committed contents of an array, typically before
// the first cycle.
func (e *Engine) LoadArray(a ArrayID, vals []int64) error {
	arr := e.arrays[a]
	if len(vals) > len(arr) {
		return errors.Errorf("array %s: %d values exceed size %d",
			e.d.arrays[a].name, len(vals), len(arr))
	}
	copy(arr, vals)
	return nil
}

// ArraySize returns the declared size of a.
func (e *Engine) ArraySize(a ArrayID) int { return e.d.arrays[a].size }

// QueueLen returns the number of committed elements in q.
func (e *Engine) QueueLen(q QueueID) int { return len(e.queues[q]) }

// queue views used during evaluation: committed state minus the pops
// already taken this cycle.

func (e *Engine) queueLen(q QueueID) int {
	return len(e.queues[q]) - e.popOff[q]
}

func (e *Engine) queueHead(q QueueID) (int64, bool) {
	if e.queueLen(q) <= 0 {
		return 0, false
	}
	return e.queues[q][e.popOff[q]], true
}

func (e *Engine) popQueue(q QueueID) (int64, error) {
	v, ok := e.queueHead(q)
	if !ok {
		return 0, &UnderflowError{Queue: e.d.queues[q].name, Cycle: e.cycle}
	}
	e.popOff[q]++
	return v, nil
}

func (e *Engine) requestActivation(s StageID) {
	e.sched.request(s)
}

// Step advances the simulation by exactly one cycle: evaluate, then
// commit. Evaluation follows the fixed topological order; all writes and
// credit changes buffer until the commit, so nothing a stage does is
// visible to another stage's reads within the same cycle.
//
func (e *Engine) Step() error {
	for i := range e.pins {
		e.pins[i] = 0
	}
	for i := range e.fired {
		e.fired[i] = false
	}
	for i := range e.popOff {
		e.popOff[i] = 0
	}
	// eligibility snapshot: credits granted during this cycle must not
	// influence it
	for _, st := range e.d.stages {
		e.eligible[st.id] = st.kind == combStage || e.sched.eligible(st)
	}

	for _, sid := range e.order {
		if !e.eligible[sid] {
			continue
		}
		st := e.d.stages[sid]
		if err := e.evalStage(st); err != nil {
			return errors.Wrapf(err, "cycle %d: stage %s", e.cycle, st.name)
		}
	}
	e.commit()
	return nil
}

func (e *Engine) evalStage(st *stageDef) error {
	if st.kind == seqStage && st.timing == Backpressure {
		// implicit leading wait: block until every input holds data
		for _, q := range st.inputs {
			if e.queueLen(q) == 0 {
				return nil
			}
		}
	}
	ec := evalCtx{e: e, st: st, pc: &predCtx{}}
	if st.nlocals > 0 {
		ec.locals = make([]int64, st.nlocals)
	}
	ec.pc.enter(true) // root frame, carries the top level read cache
	err := runOps(&ec, st.body)
	ec.pc.exit()
	if ec.pc.depth() != 0 {
		panic("seqsim: unbalanced predicate enter/exit in stage " + st.name)
	}
	if err == errBlocked {
		// failed blocking wait: not fired, credit kept, effects before
		// the wait point stand
		return nil
	}
	if err != nil {
		return err
	}
	if st.kind == seqStage {
		e.fired[st.id] = true
		e.sched.consume(st)
	}
	return nil
}

func (e *Engine) commit() {
	var pops []QueuePop
	for q, n := range e.popOff {
		if n == 0 {
			continue
		}
		e.queues[q] = e.queues[q][n:]
		pops = append(pops, QueuePop{Queue: QueueID(q), Count: n})
	}
	writes := e.log.commit(e.cycle, func(ev WriteEvent) {
		pd := e.d.ports[ev.Port]
		switch pd.kind {
		case arrayPort:
			e.arrays[pd.arr][ev.Addr] = ev.Value
		case queuePort:
			e.queues[pd.queue] = append(e.queues[pd.queue], ev.Value)
		}
	})
	credits := e.sched.apply()
	for _, r := range e.resources {
		r.res.Tick()
	}

	e.progress = len(writes) > 0 || len(pops) > 0
	if !e.progress {
		for _, st := range e.d.stages {
			if st.kind == seqStage && !st.driver && e.fired[st.id] {
				e.progress = true
				break
			}
		}
	}

	if e.obs != nil {
		fired := make([]bool, len(e.fired))
		copy(fired, e.fired)
		e.obs(&CycleTrace{
			Cycle:   e.cycle,
			Writes:  writes,
			Pops:    pops,
			Credits: credits,
			Fired:   fired,
		})
	}
	if e.finishReq {
		e.finished = true
	}
	e.cycle++
}

// Run steps the engine until a Finish operation commits (clean end), the
// cycle limit is reached (ErrMaxCycles) or the idle limit expires
// (ErrNoProgress). The liveness errors are reports, not failures: the
// committed state up to the returned cycle is valid either way, and a
// blocked design running out its bound is frequently the very bug the
// user needs to see reproduced.
//
func (e *Engine) Run(cfg RunConfig) (uint64, error) {
	if err := cfg.validate(); err != nil {
		return e.cycle, err
	}
	idle := uint64(0)
	for n := uint64(0); n < cfg.MaxCycles; n++ {
		if err := e.Step(); err != nil {
			return e.cycle, err
		}
		if e.finished {
			return e.cycle, nil
		}
		if e.progress {
			idle = 0
		} else {
			idle++
			if cfg.IdleLimit > 0 && idle >= cfg.IdleLimit {
				return e.cycle, ErrNoProgress
			}
		}
	}
	return e.cycle, ErrMaxCycles
}
