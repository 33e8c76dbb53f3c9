// Copyright 2019 M. Hoff. Licensed under the MIT license.
// See license text in the LICENSE file.

// Package simtest provides utility functions for testing elaborated
// designs, most notably lockstep equivalence checking between two
// engines that are supposed to realize the same behavior.
//
package simtest

import (
	"testing"

	"github.com/mhoff/seqsim"
)

// Collect steps e for n cycles and returns every cycle trace. It fails
// the test on the first engine error.
//
func Collect(t *testing.T, e *seqsim.Engine, n int) []*seqsim.CycleTrace {
	t.Helper()
	var traces []*seqsim.CycleTrace
	e.Observe(func(tr *seqsim.CycleTrace) { traces = append(traces, tr) })
	for i := 0; i < n; i++ {
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
	}
	e.Observe(nil)
	return traces
}

// CompareArrays steps two engines in lockstep for n cycles and fails at
// the first cycle where any watched array differs. Both engines must
// declare the watched arrays with the same handles and sizes, the same
// way two back ends built from one design would.
//
func CompareArrays(t *testing.T, a, b *seqsim.Engine, n int, watch ...seqsim.ArrayID) {
	t.Helper()
	for cycle := 0; cycle < n; cycle++ {
		if err := a.Step(); err != nil {
			t.Fatalf("cycle %d: first engine: %v", cycle, err)
		}
		if err := b.Step(); err != nil {
			t.Fatalf("cycle %d: second engine: %v", cycle, err)
		}
		for _, arr := range watch {
			sza, szb := a.ArraySize(arr), b.ArraySize(arr)
			if sza != szb {
				t.Fatalf("array %d: sizes differ (%d vs %d)", arr, sza, szb)
			}
			for i := int64(0); i < int64(sza); i++ {
				va, err := a.ReadArray(arr, i)
				if err != nil {
					t.Fatal(err)
				}
				vb, err := b.ReadArray(arr, i)
				if err != nil {
					t.Fatal(err)
				}
				if va != vb {
					t.Fatalf("cycle %d: array %d[%d]: %d != %d",
						cycle, arr, i, va, vb)
				}
			}
		}
	}
}
