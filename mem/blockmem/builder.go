package blockmem

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dmcache/mem"
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/naming"
)

// ErrInvalidConfig is wrapped by all errors returned from Build.
var ErrInvalidConfig = errors.New("invalid block memory configuration")

// Builder can build block memories.
type Builder struct {
	config      bus.BackEndConfig
	ackDelay    int
	reqAckDelay int
	storage     *mem.Storage
	signals     *bus.BackEnd
}

// MakeBuilder returns a builder for a 128-bit memory with 24 address bits,
// single-cycle latencies and a one-cycle data acknowledgement delay.
func MakeBuilder() Builder {
	return Builder{
		config: bus.BackEndConfig{
			DataWidth:    128,
			AddressWidth: 24,
			ReadLatency:  1,
			WriteLatency: 1,
		},
		ackDelay: 1,
	}
}

// WithConfig sets the line width, address width and latencies.
func (b Builder) WithConfig(config bus.BackEndConfig) Builder {
	b.config = config
	return b
}

// WithAckDelay sets the number of cycles from accepting a request to
// acknowledging its data.
func (b Builder) WithAckDelay(cycles int) Builder {
	b.ackDelay = cycles
	return b
}

// WithReqAckDelay sets the number of cycles a strobe must be held before the
// request is acknowledged.
func (b Builder) WithReqAckDelay(cycles int) Builder {
	b.reqAckDelay = cycles
	return b
}

// WithStorage makes the memory use an existing storage.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithSignals makes the memory serve existing back-end signals.
func (b Builder) WithSignals(signals *bus.BackEnd) Builder {
	b.signals = signals
	return b
}

func (b Builder) validate() error {
	c := b.config

	switch {
	case c.DataWidth <= 0 || c.DataWidth%8 != 0:
		return fmt.Errorf("%w: data width %d is not whole bytes",
			ErrInvalidConfig, c.DataWidth)
	case c.AddressWidth < 1 || c.AddressWidth > 48:
		return fmt.Errorf("%w: address width %d is out of [1, 48]",
			ErrInvalidConfig, c.AddressWidth)
	case c.ReadLatency < 1 || c.WriteLatency < 1:
		return fmt.Errorf("%w: latencies must be at least 1, got %d and %d",
			ErrInvalidConfig, c.ReadLatency, c.WriteLatency)
	case b.ackDelay < 1:
		return fmt.Errorf("%w: ack delay must be at least 1, got %d",
			ErrInvalidConfig, b.ackDelay)
	case b.reqAckDelay < 0:
		return fmt.Errorf("%w: request ack delay must not be negative, got %d",
			ErrInvalidConfig, b.reqAckDelay)
	}

	return nil
}

// Build creates a block memory.
func (b Builder) Build(name string) (*Comp, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	lineBytes := b.config.LineBytes()

	signals := b.signals
	if signals == nil {
		signals = bus.NewBackEnd(lineBytes)
	}

	if len(signals.DatR) != lineBytes || len(signals.DatW) != lineBytes {
		return nil, fmt.Errorf("%w: signals do not carry %d-byte lines",
			ErrInvalidConfig, lineBytes)
	}

	capacity := uint64(lineBytes) << b.config.AddressWidth

	storage := b.storage
	if storage == nil {
		storage = mem.NewStorage(capacity)
	} else if storage.Capacity() < capacity {
		return nil, fmt.Errorf("%w: storage holds %d bytes, need %d",
			ErrInvalidConfig, storage.Capacity(), capacity)
	}

	c := &Comp{
		NamedBase:   naming.MakeNamedBase(name),
		Storage:     storage,
		signals:     signals,
		config:      b.config,
		ackDelay:    uint64(b.ackDelay),
		reqAckDelay: b.reqAckDelay,
	}

	return c, nil
}
