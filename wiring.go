// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

package seqsim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// expandDecl expands a comma separated declaration spec into individual
// names, with bus-style groups:
//
//	expandDecl("op, data[2]")    // []string{"op", "data[0]", "data[1]"}
//	expandDecl("tag[1..3]")      // []string{"tag[1]", "tag[2]", "tag[3]"}
//
func expandDecl(spec string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(spec, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, errors.New("empty name in declaration spec")
		}
		ns, err := expandRange(f)
		if err != nil {
			return nil, errors.Wrap(err, "expand "+f)
		}
		out = append(out, ns...)
	}
	return out, nil
}

func expandRange(name string) ([]string, error) {
	i := strings.IndexRune(name, '[')
	if i < 0 {
		return []string{name}, nil
	}
	bus := name[:i]
	if bus == "" {
		return nil, errors.New("empty bus name")
	}
	n := name[i+1:]
	j := strings.IndexRune(n, ']')
	if j < 0 || j != len(n)-1 {
		return nil, errors.New("no terminating ] in bus declaration")
	}
	n = n[:j]
	start, end := 0, -1
	if k := strings.Index(n, ".."); k >= 0 {
		var err error
		if start, err = strconv.Atoi(n[:k]); err != nil {
			return nil, err
		}
		if end, err = strconv.Atoi(n[k+2:]); err != nil {
			return nil, err
		}
	} else {
		sz, err := strconv.Atoi(n)
		if err != nil {
			return nil, err
		}
		end = sz - 1
	}
	if end < start {
		return nil, errors.New("empty bus range " + name)
	}
	r := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		r = append(r, busName(bus, i))
	}
	return r, nil
}

func busName(name string, i int) string {
	return name + "[" + strconv.Itoa(i) + "]"
}

// depGraph records the combinational data dependencies between stages: an
// edge from producer to consumer exists when the consumer reads a pin the
// producer exposes or queries whether the producer fired. The graph is
// built once, at elaboration, and the evaluation order derived from it is
// fixed for the life of the engine.
type depGraph struct {
	n     int
	succs [][]StageID
	preds []int // in-degree
}

func newDepGraph(n int) *depGraph {
	return &depGraph{n: n, succs: make([][]StageID, n), preds: make([]int, n)}
}

func (g *depGraph) addEdge(from, to StageID) {
	if from == to {
		return
	}
	for _, s := range g.succs[from] {
		if s == to {
			return
		}
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to]++
}

// order returns a deterministic topological order: among ready stages the
// lowest handle goes first, so the order depends only on declaration
// order, never on map iteration or scheduling accident. A dependency
// cycle yields the list of stages on it.
func (g *depGraph) order() (order []StageID, cyclic []StageID) {
	indeg := make([]int, g.n)
	copy(indeg, g.preds)
	order = make([]StageID, 0, g.n)
	for len(order) < g.n {
		next := StageID(-1)
		for i := 0; i < g.n; i++ {
			if indeg[i] == 0 {
				next = StageID(i)
				break
			}
		}
		if next < 0 {
			for i := 0; i < g.n; i++ {
				if indeg[i] > 0 {
					cyclic = append(cyclic, StageID(i))
				}
			}
			return nil, cyclic
		}
		indeg[next] = -1
		order = append(order, next)
		for _, s := range g.succs[next] {
			indeg[s]--
		}
	}
	return order, nil
}
