// Package agent provides front-end masters that issue requests to a memory
// through bus.FrontEnd signals.
package agent

import (
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/naming"
)

// An Access is a front-end request.
type Access struct {
	Write   bool
	Address uint64
	Sel     uint8
	Data    uint64
}

// A Result is a completed access.
type Result struct {
	Access

	// Data is the read data sampled with the acknowledgement.
	Data uint64

	// IssueCycle is the first cycle the request was presented and AckCycle
	// the cycle it was acknowledged.
	IssueCycle uint64
	AckCycle   uint64
}

// Latency returns the number of cycles from issue to acknowledgement,
// inclusive.
func (r Result) Latency() uint64 {
	return r.AckCycle - r.IssueCycle + 1
}

// A Sequencer issues a fixed list of accesses, strictly one at a time.
type Sequencer struct {
	naming.NamedBase

	signals  *bus.FrontEnd
	accesses []Access
	next     int
	issuedAt uint64
	results  []Result
}

// NewSequencer creates a sequencer that drives the given signals.
func NewSequencer(
	name string,
	signals *bus.FrontEnd,
	accesses ...Access,
) *Sequencer {
	return &Sequencer{
		NamedBase: naming.MakeNamedBase(name),
		signals:   signals,
		accesses:  accesses,
	}
}

// Enqueue appends accesses to the end of the sequence.
func (s *Sequencer) Enqueue(accesses ...Access) {
	s.accesses = append(s.accesses, accesses...)
}

// Results returns the completed accesses in order.
func (s *Sequencer) Results() []Result {
	return s.results
}

// Busy tells if there are accesses left.
func (s *Sequencer) Busy() bool {
	return s.next < len(s.accesses)
}

// Comb presents the current access, or deasserts the request if there is
// none.
func (s *Sequencer) Comb(_ uint64) {
	if !s.Busy() {
		s.signals.Valid = false
		return
	}

	a := s.accesses[s.next]
	s.signals.Valid = true
	s.signals.WE = a.Write
	s.signals.Adr = a.Address
	s.signals.Sel = a.Sel
	s.signals.DatW = a.Data
}

// Sync samples the acknowledgement.
func (s *Sequencer) Sync(cycle uint64) {
	if !s.Busy() {
		s.issuedAt = cycle + 1
		return
	}

	if !s.signals.Ack {
		return
	}

	s.results = append(s.results, Result{
		Access:     s.accesses[s.next],
		Data:       s.signals.DatR,
		IssueCycle: s.issuedAt,
		AckCycle:   cycle,
	})

	s.next++
	s.issuedAt = cycle + 1
}
