package directmapped

import (
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/naming"
)

// Comp is a write-back, direct-mapped cache controller. It serves one
// front-end request at a time and fills and evicts whole lines through a
// pipelined back-end port.
//
// Comp is a clocking.Circuit. In Comb it evaluates the controller and drives
// both buses; in Sync it applies the store writes and advances the state.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase

	layout    Layout
	latencies latencies
	frontEnd  *bus.FrontEnd
	backEnd   *bus.BackEnd
	fullMask  bus.ByteMask

	store     *store
	state     fsmState
	offsetReg uint64

	eval  evaluation
	stats Stats
	txn   transaction
}

// evaluation is what Comb decided for the current cycle. The request fields
// are captured so that Sync does not depend on when the front-end master
// updates its signals.
type evaluation struct {
	next fsmState
	out  outputs

	offset, line, tag uint64
	write             bool
	sel               uint8
	datW              uint64
}

// Layout returns the address layout of the cache.
func (c *Comp) Layout() Layout {
	return c.layout
}

// FrontEnd returns the front-end signals served by the cache.
func (c *Comp) FrontEnd() *bus.FrontEnd {
	return c.frontEnd
}

// BackEnd returns the back-end signals driven by the cache.
func (c *Comp) BackEnd() *bus.BackEnd {
	return c.backEnd
}

// State returns the current controller state.
func (c *Comp) State() State {
	return c.state.State
}

// Stats returns a snapshot of the statistics.
func (c *Comp) Stats() Stats {
	return c.stats
}

// LineState returns the tag slot of a line.
func (c *Comp) LineState(line uint64) (tag uint64, dirty, valid bool) {
	s := c.store.tags[line]
	return s.tag, s.dirty, s.valid
}

// LineData returns a copy of the data of a line.
func (c *Comp) LineData(line uint64) []byte {
	return append([]byte(nil), c.store.lines[line]...)
}

// Busy tells if the controller is serving a request.
func (c *Comp) Busy() bool {
	return c.state.State != StateIdle
}

// Comb evaluates the controller and drives the outputs for this cycle.
func (c *Comp) Comb(_ uint64) {
	fe := c.frontEnd
	offset, line, tag := c.layout.Split(fe.Adr)
	stored := c.store.tagOut

	in := inputs{
		request: fe.Valid,
		write:   fe.WE,
		hit:     stored.valid && stored.tag == tag,
		dirty:   stored.valid && stored.dirty,
		reqAck:  c.backEnd.ReqAck,
		datAck:  c.backEnd.DatAck,
	}

	next, out := step(c.state, in, c.latencies)

	c.eval = evaluation{
		next:   next,
		out:    out,
		offset: offset,
		line:   line,
		tag:    tag,
		write:  fe.WE,
		sel:    fe.Sel,
		datW:   fe.DatW,
	}

	c.drive(out, line, stored.tag)
}

func (c *Comp) drive(out outputs, line, storedTag uint64) {
	fe := c.frontEnd
	fe.Ack = out.ack
	fe.DatR = bus.SelectLane(
		c.store.dataOut, int(c.offsetReg), c.layout.FrontBytes)

	be := c.backEnd
	be.Stb = out.stb
	be.WE = out.we
	be.Adr = c.layout.BackEndAddress(line, storedTag)

	if out.evictData {
		copy(be.DatW, c.store.dataOut)
		be.DatWE.CopyFrom(c.fullMask)
	} else {
		be.DatWE.Clear()
	}
}

// Sync applies the writes decided in Comb and moves to the next state.
func (c *Comp) Sync(cycle uint64) {
	e := c.eval

	c.applyWrites(e)
	c.store.latch(e.line)
	c.offsetReg = e.offset

	c.stats.StateCycles[c.state.State]++
	c.observe(e)

	prev := c.state.State
	c.state = e.next

	if prev != e.next.State {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosStateChange,
			Item: Transition{
				Cycle: cycle,
				From:  prev,
				To:    e.next.State,
			},
		})
	}
}

func (c *Comp) applyWrites(e evaluation) {
	switch {
	case e.out.writeHit:
		c.store.tagWrite(e.line, slot{tag: e.tag, dirty: true, valid: true})
		c.store.dataWrite(e.line,
			bus.LaneMask(e.sel, int(e.offset),
				c.layout.FrontBytes, c.layout.LanesPerLine()),
			bus.Replicate(e.datW,
				c.layout.FrontBytes, c.layout.LanesPerLine()))
	case e.out.refillTag:
		c.store.tagWrite(e.line, slot{tag: e.tag, valid: true})
	case e.out.refillData:
		c.store.dataWrite(e.line, c.fullMask, c.backEnd.DatR)
	}
}
