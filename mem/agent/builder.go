package agent

import (
	"errors"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/naming"
)

// RandomAgentBuilder builds RandomAgents.
type RandomAgentBuilder struct {
	seed         int64
	frontBytes   int
	addressRange uint64
	writeRatio   float64
	numAccesses  int
}

// MakeRandomAgentBuilder returns a builder for an agent issuing 1000 accesses
// of 32-bit words over 4096 word addresses, half of them writes.
func MakeRandomAgentBuilder() RandomAgentBuilder {
	return RandomAgentBuilder{
		seed:         1,
		frontBytes:   4,
		addressRange: 4096,
		writeRatio:   0.5,
		numAccesses:  1000,
	}
}

// WithSeed sets the random seed.
func (b RandomAgentBuilder) WithSeed(seed int64) RandomAgentBuilder {
	b.seed = seed
	return b
}

// WithFrontEndWidth sets the width of a front-end word in bits.
func (b RandomAgentBuilder) WithFrontEndWidth(bits int) RandomAgentBuilder {
	b.frontBytes = bits / 8
	return b
}

// WithAddressRange sets the number of word addresses the agent touches.
func (b RandomAgentBuilder) WithAddressRange(words uint64) RandomAgentBuilder {
	b.addressRange = words
	return b
}

// WithWriteRatio sets the probability of issuing a write.
func (b RandomAgentBuilder) WithWriteRatio(ratio float64) RandomAgentBuilder {
	b.writeRatio = ratio
	return b
}

// WithNumAccesses sets the number of accesses to issue.
func (b RandomAgentBuilder) WithNumAccesses(n int) RandomAgentBuilder {
	b.numAccesses = n
	return b
}

// Build creates an agent driving the given front-end signals.
func (b RandomAgentBuilder) Build(
	name string,
	signals *bus.FrontEnd,
) (*RandomAgent, error) {
	switch {
	case b.frontBytes < 1 || b.frontBytes > 8:
		return nil, errors.New("front-end width must be 8 to 64 bits")
	case b.addressRange == 0 || b.addressRange > 1<<32:
		return nil, errors.New("address range must be in [1, 2^32]")
	case b.writeRatio < 0 || b.writeRatio > 1:
		return nil, errors.New("write ratio must be in [0, 1]")
	case b.numAccesses < 0:
		return nil, errors.New("number of accesses must not be negative")
	}

	a := &RandomAgent{
		NamedBase:    naming.MakeNamedBase(name),
		signals:      signals,
		rng:          rand.New(rand.NewSource(b.seed)),
		frontBytes:   b.frontBytes,
		addressRange: b.addressRange,
		writeRatio:   b.writeRatio,
		remaining:    b.numAccesses,
		known:        make(map[uint64]knownWord),
		written:      roaring.New(),
	}

	if a.remaining > 0 {
		a.current = a.nextAccess()
	}

	return a, nil
}
