/*
Package seqsim implements the execution semantics shared by the two back
ends of a behavioral hardware toolchain: a cycle-accurate software
simulator and a register-transfer emitter. Both consume the same
intermediate representation and must realize identical observable
behavior; this package is the single source of truth for what that
behavior is.

A design is elaborated through an explicit *Design builder into an
*Engine, a plain value with no global state. The engine advances in
discrete cycles. Each cycle it evaluates the eligible sequential stages
and every combinational stage in a fixed topological order, buffers all
register and queue writes in an exclusive per-port write log, buffers all
activation credits, and commits everything atomically at the cycle
boundary. Reads only ever observe state committed before the cycle began,
so evaluation order within a cycle can never change the result.

*/
package seqsim
