package bus

import "github.com/bits-and-blooms/bitset"

// ByteMask enables bytes of a line. Bit i enables byte i of the line.
type ByteMask struct {
	bits *bitset.BitSet
}

// NewByteMask creates a mask of n disabled bytes.
func NewByteMask(n uint) ByteMask {
	return ByteMask{bits: bitset.New(n)}
}

// FullByteMask creates a mask of n enabled bytes.
func FullByteMask(n uint) ByteMask {
	m := NewByteMask(n)
	m.bits.FlipRange(0, n)

	return m
}

// Len returns the number of bytes the mask covers.
func (m ByteMask) Len() uint {
	if m.bits == nil {
		return 0
	}

	return m.bits.Len()
}

// Enable enables byte i.
func (m ByteMask) Enable(i uint) ByteMask {
	m.bits.Set(i)
	return m
}

// Enabled tells if byte i is enabled.
func (m ByteMask) Enabled(i uint) bool {
	if m.bits == nil || i >= m.bits.Len() {
		return false
	}

	return m.bits.Test(i)
}

// Count returns the number of enabled bytes.
func (m ByteMask) Count() uint {
	if m.bits == nil {
		return 0
	}

	return m.bits.Count()
}

// Any tells if at least one byte is enabled.
func (m ByteMask) Any() bool {
	return m.bits != nil && m.bits.Any()
}

// Clear disables all bytes.
func (m ByteMask) Clear() {
	if m.bits != nil {
		m.bits.ClearAll()
	}
}

// CopyFrom makes m enable the same bytes as other.
func (m ByteMask) CopyFrom(other ByteMask) {
	m.Clear()

	if other.bits == nil {
		return
	}

	m.bits.InPlaceUnion(other.bits)
}

// Apply copies the enabled bytes of src into dst.
func (m ByteMask) Apply(dst, src []byte) {
	if m.bits == nil {
		return
	}

	for i, e := m.bits.NextSet(0); e; i, e = m.bits.NextSet(i + 1) {
		if int(i) >= len(dst) || int(i) >= len(src) {
			return
		}

		dst[i] = src[i]
	}
}
