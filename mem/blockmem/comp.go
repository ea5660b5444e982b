// Package blockmem models a memory that serves whole lines over a pipelined
// block port.
package blockmem

import (
	"log"

	"github.com/sarchlab/dmcache/mem"
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/hooking"
	"github.com/sarchlab/dmcache/sim/naming"
)

// HookPosTransferDone is triggered when a transfer completes. The hook item
// is a Transfer.
var HookPosTransferDone = &hooking.HookPos{Name: "TransferDone"}

// filler is driven on the read data lines in cycles where they carry no
// valid data.
const filler = 0xEE

// A Transfer is a line read or written through the port.
type Transfer struct {
	Write      bool
	Address    uint64
	AcceptedAt uint64
	DataAckAt  uint64
	DataAt     uint64

	// Data is the line after a write or the line returned by a read.
	Data []byte
}

// Stats counts the traffic served by the memory.
type Stats struct {
	Reads        uint64
	Writes       uint64
	BytesRead    uint64
	BytesWritten uint64
	MaxInFlight  int
}

// Comp is a block memory. A request is accepted in a cycle where both the
// strobe and the request acknowledgement are high. The data acknowledgement
// follows AckDelay cycles later and the data moves the configured latency
// after that.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase

	Storage *mem.Storage

	signals     *bus.BackEnd
	config      bus.BackEndConfig
	ackDelay    uint64
	reqAckDelay int

	held     int
	inflight []*Transfer
	stats    Stats
}

// Signals returns the back-end signals served by the memory.
func (c *Comp) Signals() *bus.BackEnd {
	return c.signals
}

// Config returns the static port description.
func (c *Comp) Config() bus.BackEndConfig {
	return c.config
}

// Stats returns a snapshot of the statistics.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Busy tells if any transfer is in flight.
func (c *Comp) Busy() bool {
	return len(c.inflight) > 0
}

func (c *Comp) requestReady() bool {
	return c.held >= c.reqAckDelay
}

func (c *Comp) lineAddress(addr uint64) uint64 {
	return addr * uint64(c.config.LineBytes())
}

// Comb drives the acknowledgements and the read data.
func (c *Comp) Comb(cycle uint64) {
	s := c.signals
	s.ReqAck = c.requestReady()
	s.DatAck = false

	readValid := false

	for _, t := range c.inflight {
		if t.DataAckAt == cycle {
			s.DatAck = true
		}

		if !t.Write && t.DataAt == cycle {
			c.readLine(t.Address, s.DatR)
			readValid = true
		}
	}

	if !readValid {
		for i := range s.DatR {
			s.DatR[i] = filler
		}
	}
}

func (c *Comp) readLine(addr uint64, dst []byte) {
	data, err := c.Storage.Read(
		c.lineAddress(addr), uint64(c.config.LineBytes()))
	if err != nil {
		log.Panic(err)
	}

	copy(dst, data)
}

// Sync completes due transfers and accepts a new request.
func (c *Comp) Sync(cycle uint64) {
	c.complete(cycle)
	c.accept(cycle)
}

func (c *Comp) complete(cycle uint64) {
	remaining := c.inflight[:0]

	for _, t := range c.inflight {
		if t.DataAt != cycle {
			remaining = append(remaining, t)
			continue
		}

		if t.Write {
			c.writeLine(t)
		} else {
			t.Data = append([]byte(nil), c.signals.DatR...)
			c.stats.Reads++
			c.stats.BytesRead += uint64(len(t.Data))
		}

		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosTransferDone,
			Item:   *t,
		})
	}

	c.inflight = remaining
}

func (c *Comp) writeLine(t *Transfer) {
	s := c.signals
	line := make([]byte, c.config.LineBytes())
	c.readLine(t.Address, line)

	s.DatWE.Apply(line, s.DatW)

	err := c.Storage.Write(c.lineAddress(t.Address), line)
	if err != nil {
		log.Panic(err)
	}

	t.Data = line
	c.stats.Writes++
	c.stats.BytesWritten += uint64(s.DatWE.Count())
}

func (c *Comp) accept(cycle uint64) {
	s := c.signals

	if !s.Stb {
		c.held = 0
		return
	}

	if !c.requestReady() {
		c.held++
		return
	}

	t := &Transfer{
		Write:      s.WE,
		Address:    s.Adr & (uint64(1)<<c.config.AddressWidth - 1),
		AcceptedAt: cycle,
		DataAckAt:  cycle + c.ackDelay,
	}

	latency := c.config.ReadLatency
	if t.Write {
		latency = c.config.WriteLatency
	}

	t.DataAt = t.DataAckAt + uint64(latency)

	c.inflight = append(c.inflight, t)
	c.held = 0

	if len(c.inflight) > c.stats.MaxInFlight {
		c.stats.MaxInFlight = len(c.inflight)
	}
}
