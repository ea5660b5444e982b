package clocking

import (
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/timing"
)

// HookPosCycleStart is triggered before the combinational phase of a cycle.
// The hook item is the cycle number.
var HookPosCycleStart = &hooking.HookPos{Name: "CycleStart"}

// HookPosCycleEnd is triggered after the sequential phase of a cycle.
var HookPosCycleEnd = &hooking.HookPos{Name: "CycleEnd"}

// A Domain is a clock domain. It ticks its circuits as long as one of them is
// busy.
type Domain struct {
	*timing.TickingComponent

	circuits     []Circuit
	cycle        uint64
	maxCycles    uint64
	limitReached bool
}

// Register adds circuits to the domain. The order of registration is the
// order of evaluation.
func (d *Domain) Register(circuits ...Circuit) {
	d.circuits = append(d.circuits, circuits...)
}

// Circuits returns the registered circuits.
func (d *Domain) Circuits() []Circuit {
	return d.circuits
}

// Start schedules a tick. A domain that stopped because its circuits became
// idle resumes in the next period.
func (d *Domain) Start() {
	if d.cycle == 0 {
		d.TickNow()
		return
	}

	d.TickLater()
}

// Cycle returns the number of cycles evaluated so far.
func (d *Domain) Cycle() uint64 {
	return d.cycle
}

// LimitReached tells if the domain stopped because of the cycle limit.
func (d *Domain) LimitReached() bool {
	return d.limitReached
}

// Busy returns true if any circuit is busy.
func (d *Domain) Busy() bool {
	for _, c := range d.circuits {
		if c.Busy() {
			return true
		}
	}

	return false
}

// Tick evaluates one cycle.
func (d *Domain) Tick() bool {
	if d.maxCycles > 0 && d.cycle >= d.maxCycles {
		d.limitReached = true
		return false
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosCycleStart,
		Item:   d.cycle,
	})

	for _, c := range d.circuits {
		c.Comb(d.cycle)
	}

	for _, c := range d.circuits {
		c.Sync(d.cycle)
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosCycleEnd,
		Item:   d.cycle,
	})

	d.cycle++

	return d.Busy()
}

// Builder builds clock domains.
type Builder struct {
	engine    timing.Engine
	freq      timing.Freq
	maxCycles uint64
}

// MakeBuilder returns a builder with a 1 GHz clock.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * timing.GHz,
	}
}

// WithEngine sets the engine that drives the domain.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxCycles stops the domain after n cycles. Zero means no limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a domain with the given name.
func (b Builder) Build(name string) *Domain {
	d := &Domain{
		maxCycles: b.maxCycles,
	}
	d.TickingComponent = timing.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}
