package directmapped

import (
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/naming"
)

// Builder can build direct-mapped caches.
type Builder struct {
	frontEndWidth int
	capacityWords uint64
	backEndConfig bus.BackEndConfig
	frontEnd      *bus.FrontEnd
	backEnd       *bus.BackEnd
}

// MakeBuilder returns a builder with a 32-bit front-end, a 128-bit back-end
// with single-cycle latencies and 1024 words of capacity.
func MakeBuilder() Builder {
	return Builder{
		frontEndWidth: 32,
		capacityWords: 1024,
		backEndConfig: bus.BackEndConfig{
			DataWidth:    128,
			AddressWidth: 24,
			ReadLatency:  1,
			WriteLatency: 1,
		},
	}
}

// WithFrontEndWidth sets the width of a front-end word in bits.
func (b Builder) WithFrontEndWidth(width int) Builder {
	b.frontEndWidth = width
	return b
}

// WithCapacityWords sets the size of the data store in front-end words.
func (b Builder) WithCapacityWords(words uint64) Builder {
	b.capacityWords = words
	return b
}

// WithBackEndConfig sets the line width, address width and latencies of the
// back-end port.
func (b Builder) WithBackEndConfig(config bus.BackEndConfig) Builder {
	b.backEndConfig = config
	return b
}

// WithFrontEnd sets the front-end signals to serve. If not set, Build
// creates them.
func (b Builder) WithFrontEnd(fe *bus.FrontEnd) Builder {
	b.frontEnd = fe
	return b
}

// WithBackEnd sets the back-end signals to drive. If not set, Build creates
// them.
func (b Builder) WithBackEnd(be *bus.BackEnd) Builder {
	b.backEnd = be
	return b
}

// Geometry returns the geometry the builder is configured with.
func (b Builder) Geometry() Geometry {
	return Geometry{
		FrontEndWidth:       b.frontEndWidth,
		BackEndWidth:        b.backEndConfig.DataWidth,
		CapacityWords:       b.capacityWords,
		BackEndAddressWidth: b.backEndConfig.AddressWidth,
	}
}

// Build creates a cache. It returns a *ConfigError if the configuration
// violates a constraint.
func (b Builder) Build(name string) (*Comp, error) {
	layout, err := NewLayout(b.Geometry())
	if err != nil {
		return nil, err
	}

	if b.backEndConfig.ReadLatency < 1 || b.backEndConfig.WriteLatency < 1 {
		return nil, configError("latencies must be at least 1",
			"read latency %d, write latency %d",
			b.backEndConfig.ReadLatency, b.backEndConfig.WriteLatency)
	}

	be, err := b.backEndSignals(layout.LineBytes)
	if err != nil {
		return nil, err
	}

	fe := b.frontEnd
	if fe == nil {
		fe = &bus.FrontEnd{}
	}

	c := &Comp{
		NamedBase: naming.MakeNamedBase(name),
		layout:    layout,
		latencies: latencies{
			read:  b.backEndConfig.ReadLatency,
			write: b.backEndConfig.WriteLatency,
		},
		frontEnd: fe,
		backEnd:  be,
		fullMask: bus.FullByteMask(uint(layout.LineBytes)),
		store:    newStore(layout.NumLines(), layout.LineBytes),
	}

	return c, nil
}

func (b Builder) backEndSignals(lineBytes int) (*bus.BackEnd, error) {
	be := b.backEnd
	if be == nil {
		return bus.NewBackEnd(lineBytes), nil
	}

	if len(be.DatW) != lineBytes || len(be.DatR) != lineBytes {
		return nil, configError("back-end signals must match the line width",
			"line is %d bytes, data signals are %d and %d bytes",
			lineBytes, len(be.DatW), len(be.DatR))
	}

	if be.DatWE.Len() < uint(lineBytes) {
		be.DatWE = bus.NewByteMask(uint(lineBytes))
	}

	return be, nil
}
