package directmapped

import "encoding/hex"

// A Snapshot is a copy of the controller state that stays valid while the
// cache keeps running.
type Snapshot struct {
	State  string
	Stats  Stats
	Layout Layout
	Lines  []LineSnapshot
}

// A LineSnapshot is a copy of one tag slot and its line.
type LineSnapshot struct {
	Index          uint64
	Tag            uint64
	Valid          bool
	Dirty          bool
	BackEndAddress uint64

	// Data is the line in hex, most significant lane first.
	Data string
}

// Snapshot copies the controller state. It must be called between cycles.
func (c *Comp) Snapshot() *Snapshot {
	s := &Snapshot{
		State:  c.state.State.String(),
		Stats:  c.stats,
		Layout: c.layout,
		Lines:  make([]LineSnapshot, len(c.store.tags)),
	}

	for i, slot := range c.store.tags {
		line := uint64(i)
		s.Lines[i] = LineSnapshot{
			Index:          line,
			Tag:            slot.tag,
			Valid:          slot.valid,
			Dirty:          slot.dirty,
			BackEndAddress: c.layout.BackEndAddress(line, slot.tag),
			Data:           hex.EncodeToString(c.store.lines[i]),
		}
	}

	return s
}

// Inspect returns Snapshot.
func (c *Comp) Inspect() any {
	return c.Snapshot()
}
