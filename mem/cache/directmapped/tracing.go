package directmapped

import (
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/id"
	"github.com/sarchlab/dmcache/tracing"
)

// HookPosStateChange is triggered when the controller changes state. The
// hook item is a Transition.
var HookPosStateChange = &hooking.HookPos{Name: "StateChange"}

// A Transition is a state change of the controller.
type Transition struct {
	// Cycle is the cycle in which the controller was in From.
	Cycle uint64
	From  State
	To    State
}

// Request describes a front-end request. It is the detail of the traced
// tasks.
type Request struct {
	Write   bool
	Address uint64
	Sel     uint8
	Data    uint64
}

type transaction struct {
	id     string
	missed bool
}

// observe updates the statistics and reports task progress for the cycle
// described by e.
func (c *Comp) observe(e evaluation) {
	switch c.state.State {
	case StateIdle:
		if e.next.State == StateTestHit {
			c.startTransaction(e)
		}
	case StateTestHit:
		c.observeTestHit(e)
	case StateEvictData:
		c.stats.Evictions++
	case StateRefillWriteTag:
		tracing.AddTaskStep(c.txn.id, c, "refill")
	case StateRefillData:
		c.stats.Refills++
	}
}

func (c *Comp) startTransaction(e evaluation) {
	c.txn = transaction{id: id.Generate()}

	what := "read"
	if e.write {
		what = "write"
	}

	tracing.StartTask(c.txn.id, "", c, "req_in", what, Request{
		Write:   e.write,
		Address: c.layout.Compose(e.offset, e.line, e.tag),
		Sel:     e.sel,
		Data:    e.datW,
	})
}

func (c *Comp) observeTestHit(e evaluation) {
	if !e.out.ack {
		c.stats.Misses++
		c.txn.missed = true
		tracing.AddTaskStep(c.txn.id, c, "miss")

		if e.next.State == StateEvictRequest {
			tracing.AddTaskStep(c.txn.id, c, "evict")
		}

		return
	}

	if !c.txn.missed {
		c.stats.Hits++
		tracing.AddTaskStep(c.txn.id, c, "hit")
	}

	if e.write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	tracing.EndTask(c.txn.id, c)
}
