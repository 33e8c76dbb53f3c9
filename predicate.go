// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

// readKey identifies one storage location read under a predicate frame.
type readKey struct {
	arr ArrayID
	idx int64
}

// A predFrame is one nested condition scope: the condition itself, the
// conjunction of every enclosing condition (computed once, at entry), and
// a cache of array reads already issued in this scope. The cache is what
// keeps two textually identical reads under one condition from counting
// as two hardware read ports.
type predFrame struct {
	cond  bool
	carry bool
	reads map[readKey]int64
}

// A predCtx is the per-stage stack of predicate frames. Each stage owns an
// independent context; no condition or cached read is ever visible across
// stage boundaries.
type predCtx struct {
	frames []predFrame
}

// enter pushes a new frame whose carry is the parent carry ANDed with
// cond. The carry is memoized here so that every later query is O(1).
func (pc *predCtx) enter(cond bool) {
	carry := cond
	if n := len(pc.frames); n > 0 {
		carry = cond && pc.frames[n-1].carry
	}
	pc.frames = append(pc.frames, predFrame{cond: cond, carry: carry})
}

// exit pops the current frame, discarding its read cache. An exit without
// a matching enter is a bug in the body generator, not a runtime
// condition.
func (pc *predCtx) exit() {
	if len(pc.frames) == 0 {
		panic("seqsim: predicate exit without matching enter")
	}
	pc.frames = pc.frames[:len(pc.frames)-1]
}

// carry reports the cumulative condition guarding the current program
// point, true when the stack is empty.
func (pc *predCtx) carry() bool {
	if n := len(pc.frames); n > 0 {
		return pc.frames[n-1].carry
	}
	return true
}

func (pc *predCtx) depth() int { return len(pc.frames) }

// cachedRead returns the memoized result of a previous read of (arr, idx)
// in the current frame.
func (pc *predCtx) cachedRead(arr ArrayID, idx int64) (int64, bool) {
	n := len(pc.frames)
	if n == 0 {
		return 0, false
	}
	v, ok := pc.frames[n-1].reads[readKey{arr, idx}]
	return v, ok
}

// cacheRead records the result of a read so that a repeated read of the
// same location under the same condition reuses it. Leaving the scope
// discards the entry: a read taken under a narrower condition never leaks
// into a wider one.
func (pc *predCtx) cacheRead(arr ArrayID, idx int64, v int64) {
	n := len(pc.frames)
	if n == 0 {
		return
	}
	f := &pc.frames[n-1]
	if f.reads == nil {
		f.reads = make(map[readKey]int64, 4)
	}
	f.reads[readKey{arr, idx}] = v
}
