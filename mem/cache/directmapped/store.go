package directmapped

import "github.com/sarchlab/dmcache/mem/bus"

type slot struct {
	tag   uint64
	dirty bool
	valid bool
}

// store holds the tag and data arrays. Reads are synchronous: the outputs are
// registered and only change when latch is called at the clock edge, after
// the writes of the cycle.
type store struct {
	tags  []slot
	lines [][]byte

	tagOut  slot
	dataOut []byte
}

func newStore(numLines, lineBytes int) *store {
	s := &store{
		tags:    make([]slot, numLines),
		lines:   make([][]byte, numLines),
		dataOut: make([]byte, lineBytes),
	}

	for i := range s.lines {
		s.lines[i] = make([]byte, lineBytes)
	}

	return s
}

func (s *store) tagWrite(line uint64, value slot) {
	s.tags[line] = value
}

func (s *store) dataWrite(line uint64, enable bus.ByteMask, value []byte) {
	enable.Apply(s.lines[line], value)
}

func (s *store) latch(line uint64) {
	s.tagOut = s.tags[line]
	copy(s.dataOut, s.lines[line])
}
