package agent

import (
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/naming"
)

// A Mismatch is a read that returned a byte different from the last byte
// written to the same place.
type Mismatch struct {
	Address  uint64
	Expected uint64
	Actual   uint64
	Sel      uint8
	Cycle    uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf(
		"cycle %d: address 0x%x expected 0x%x got 0x%x (sel 0x%x)",
		m.Cycle, m.Address, m.Expected, m.Actual, m.Sel)
}

// AgentStats counts the accesses of a RandomAgent.
type AgentStats struct {
	Reads      uint64
	Writes     uint64
	Mismatches uint64
}

type knownWord struct {
	value uint64
	known uint8
}

// maxRecordedMismatches limits how many mismatches are kept in detail.
const maxRecordedMismatches = 16

// A RandomAgent issues a seeded random mix of reads and writes and checks
// every read against what it wrote before. Reads only target words that have
// been written, so every read checks at least one byte.
type RandomAgent struct {
	naming.NamedBase

	signals      *bus.FrontEnd
	rng          *rand.Rand
	frontBytes   int
	addressRange uint64
	writeRatio   float64
	remaining    int

	current  Access
	issuedAt uint64

	known      map[uint64]knownWord
	written    *roaring.Bitmap
	mismatches []Mismatch
	latencies  []float64
	stats      AgentStats
}

// Stats returns a snapshot of the statistics.
func (a *RandomAgent) Stats() AgentStats {
	return a.stats
}

// Mismatches returns the first recorded mismatches.
func (a *RandomAgent) Mismatches() []Mismatch {
	return a.mismatches
}

// Latencies returns the latency of every completed access in cycles.
func (a *RandomAgent) Latencies() []float64 {
	return a.latencies
}

// KnownWords returns the number of distinct words written so far.
func (a *RandomAgent) KnownWords() uint64 {
	return a.written.GetCardinality()
}

// An AgentSnapshot is a copy of the agent progress.
type AgentSnapshot struct {
	Stats      AgentStats
	Remaining  int
	Current    Access
	KnownWords uint64
	Mismatches []Mismatch
}

// Inspect copies the agent progress. It must be called between cycles.
func (a *RandomAgent) Inspect() any {
	return &AgentSnapshot{
		Stats:      a.stats,
		Remaining:  a.remaining,
		Current:    a.current,
		KnownWords: a.KnownWords(),
		Mismatches: append([]Mismatch(nil), a.mismatches...),
	}
}

// Busy tells if there are accesses left.
func (a *RandomAgent) Busy() bool {
	return a.remaining > 0
}

// Comb presents the current access.
func (a *RandomAgent) Comb(_ uint64) {
	if !a.Busy() {
		a.signals.Valid = false
		return
	}

	a.signals.Valid = true
	a.signals.WE = a.current.Write
	a.signals.Adr = a.current.Address
	a.signals.Sel = a.current.Sel
	a.signals.DatW = a.current.Data
}

// Sync samples the acknowledgement, checks reads and prepares the next
// access.
func (a *RandomAgent) Sync(cycle uint64) {
	if !a.Busy() || !a.signals.Ack {
		return
	}

	if a.current.Write {
		a.recordWrite(a.current)
		a.stats.Writes++
	} else {
		a.check(a.current, a.signals.DatR, cycle)
		a.stats.Reads++
	}

	a.latencies = append(a.latencies, float64(cycle-a.issuedAt+1))
	a.issuedAt = cycle + 1

	a.remaining--
	if a.remaining > 0 {
		a.current = a.nextAccess()
	}
}

func (a *RandomAgent) nextAccess() Access {
	full := bus.FullSelector(a.frontBytes)

	if a.written.IsEmpty() || a.rng.Float64() < a.writeRatio {
		return Access{
			Write:   true,
			Address: uint64(a.rng.Int63n(int64(a.addressRange))),
			Sel:     uint8(a.rng.Intn(int(full))) + 1,
			Data:    a.rng.Uint64() & wordMask(a.frontBytes),
		}
	}

	i := a.rng.Intn(int(a.written.GetCardinality()))
	addr, err := a.written.Select(uint32(i))
	if err != nil {
		panic(err)
	}

	return Access{
		Address: uint64(addr),
		Sel:     full,
	}
}

func (a *RandomAgent) recordWrite(w Access) {
	k := a.known[w.Address]

	for j := 0; j < a.frontBytes; j++ {
		if w.Sel&(1<<j) == 0 {
			continue
		}

		byteMask := uint64(0xFF) << (8 * j)
		k.value = k.value&^byteMask | w.Data&byteMask
		k.known |= 1 << j
	}

	a.known[w.Address] = k
	a.written.Add(uint32(w.Address))
}

func (a *RandomAgent) check(r Access, data uint64, cycle uint64) {
	k := a.known[r.Address]
	checked := knownBytesMask(k.known, a.frontBytes)

	if data&checked == k.value&checked {
		return
	}

	a.stats.Mismatches++

	if len(a.mismatches) < maxRecordedMismatches {
		a.mismatches = append(a.mismatches, Mismatch{
			Address:  r.Address,
			Expected: k.value & checked,
			Actual:   data & checked,
			Sel:      k.known,
			Cycle:    cycle,
		})
	}
}

func knownBytesMask(known uint8, frontBytes int) uint64 {
	var m uint64

	for j := 0; j < frontBytes; j++ {
		if known&(1<<j) != 0 {
			m |= uint64(0xFF) << (8 * j)
		}
	}

	return m
}

func wordMask(frontBytes int) uint64 {
	if frontBytes >= 8 {
		return ^uint64(0)
	}

	return uint64(1)<<(8*frontBytes) - 1
}
