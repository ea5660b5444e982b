// Package clocking evaluates synchronous circuits cycle by cycle.
//
// Every cycle runs in two phases. In the combinational phase each circuit
// reads the signals driven so far and drives its outputs. In the sequential
// phase each circuit samples its inputs and updates its registers, as at a
// rising clock edge. Circuits are evaluated in registration order, so a
// circuit may only combinationally depend on circuits registered before it.
package clocking

import "github.com/sarchlab/dmcache/sim/naming"

// A Circuit is a piece of synchronous logic.
type Circuit interface {
	naming.Named

	// Comb drives the outputs of the circuit for the given cycle.
	Comb(cycle uint64)

	// Sync applies the register updates at the end of the given cycle.
	Sync(cycle uint64)

	// Busy returns true if the circuit still has work to do.
	Busy() bool
}
