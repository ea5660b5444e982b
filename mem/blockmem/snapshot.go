package blockmem

// A Snapshot is a copy of the memory port state.
type Snapshot struct {
	Stats Stats

	// Ready tells if a strobe would be accepted in the next cycle.
	Ready bool

	// InFlight lists the accepted transfers that have not moved data yet.
	// Their Data is not copied.
	InFlight []Transfer
}

// Inspect copies the port state. It must be called between cycles.
func (c *Comp) Inspect() any {
	s := &Snapshot{
		Stats:    c.stats,
		Ready:    c.requestReady(),
		InFlight: make([]Transfer, 0, len(c.inflight)),
	}

	for _, t := range c.inflight {
		copied := *t
		copied.Data = nil
		s.InFlight = append(s.InFlight, copied)
	}

	return s
}
