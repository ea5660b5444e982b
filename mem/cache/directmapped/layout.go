package directmapped

import "math/bits"

// Geometry describes the widths and size that determine a cache layout.
type Geometry struct {
	// FrontEndWidth is the width of a front-end word in bits.
	FrontEndWidth int

	// BackEndWidth is the width of a cache line in bits.
	BackEndWidth int

	// CapacityWords is the size of the data store in front-end words.
	CapacityWords uint64

	// BackEndAddressWidth is the number of back-end line address bits.
	BackEndAddressWidth int
}

// Layout splits front-end word addresses into offset, line and tag fields.
// From the most significant bit down, an address is tag | line | offset.
type Layout struct {
	OffsetBits int
	LineBits   int
	TagBits    int

	FrontBytes int
	LineBytes  int
}

// NewLayout validates a geometry and derives its layout.
func NewLayout(g Geometry) (Layout, error) {
	if err := checkWidths(g); err != nil {
		return Layout{}, err
	}

	if g.CapacityWords == 0 || !isPowerOfTwo(g.CapacityWords) {
		return Layout{}, configError("capacity must be a power of two",
			"capacity is %d words", g.CapacityWords)
	}

	if g.BackEndAddressWidth < 1 {
		return Layout{}, configError("back-end address width must be positive",
			"address width is %d", g.BackEndAddressWidth)
	}

	l := Layout{
		OffsetBits: log2(uint64(g.BackEndWidth / g.FrontEndWidth)),
		FrontBytes: g.FrontEndWidth / 8,
		LineBytes:  g.BackEndWidth / 8,
	}

	l.LineBits = log2(g.CapacityWords) - l.OffsetBits
	if l.LineBits < 0 {
		return Layout{}, configError("capacity must hold at least one line",
			"%d words with %d words per line",
			g.CapacityWords, 1<<l.OffsetBits)
	}

	addressBits := g.BackEndAddressWidth + l.OffsetBits
	if addressBits > 64 {
		return Layout{}, configError("address must fit in 64 bits",
			"address is %d bits", addressBits)
	}

	// tag | line is exactly one back-end line address.
	l.TagBits = g.BackEndAddressWidth - l.LineBits
	if l.TagBits < 0 {
		return Layout{}, configError("capacity must not exceed the address space",
			"%d line bits but only %d back-end address bits",
			l.LineBits, g.BackEndAddressWidth)
	}

	return l, nil
}

func checkWidths(g Geometry) error {
	if g.FrontEndWidth <= 0 || g.FrontEndWidth%8 != 0 {
		return configError("front-end width must be whole bytes",
			"front-end width is %d bits", g.FrontEndWidth)
	}

	if g.FrontEndWidth > 64 {
		return configError("front-end width must not exceed 64 bits",
			"front-end width is %d bits", g.FrontEndWidth)
	}

	if g.BackEndWidth%8 != 0 {
		return configError("back-end width must be whole bytes",
			"back-end width is %d bits", g.BackEndWidth)
	}

	if g.BackEndWidth < g.FrontEndWidth {
		return configError("back-end width must be at least the front-end width",
			"back-end %d bits, front-end %d bits",
			g.BackEndWidth, g.FrontEndWidth)
	}

	if g.BackEndWidth%g.FrontEndWidth != 0 {
		return configError(
			"back-end width must be a multiple of the front-end width",
			"back-end %d bits, front-end %d bits",
			g.BackEndWidth, g.FrontEndWidth)
	}

	lanes := uint64(g.BackEndWidth / g.FrontEndWidth)
	if !isPowerOfTwo(lanes) {
		return configError("words per line must be a power of two",
			"%d words per line", lanes)
	}

	return nil
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

func log2(n uint64) int {
	return bits.TrailingZeros64(n)
}

func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return uint64(1)<<n - 1
}

// AddressBits returns the width of a front-end word address.
func (l Layout) AddressBits() int {
	return l.OffsetBits + l.LineBits + l.TagBits
}

// NumLines returns the number of lines in the cache.
func (l Layout) NumLines() int {
	return 1 << l.LineBits
}

// LanesPerLine returns the number of front-end words in a line.
func (l Layout) LanesPerLine() int {
	return 1 << l.OffsetBits
}

// Split decomposes an address. Bits above AddressBits are ignored.
func (l Layout) Split(addr uint64) (offset, line, tag uint64) {
	offset = addr & mask(l.OffsetBits)
	line = (addr >> l.OffsetBits) & mask(l.LineBits)
	tag = (addr >> (l.OffsetBits + l.LineBits)) & mask(l.TagBits)

	return offset, line, tag
}

// Compose is the inverse of Split.
func (l Layout) Compose(offset, line, tag uint64) uint64 {
	return tag<<(l.OffsetBits+l.LineBits) |
		(line&mask(l.LineBits))<<l.OffsetBits |
		offset&mask(l.OffsetBits)
}

// BackEndAddress returns the back-end line address holding a cache line.
func (l Layout) BackEndAddress(line, tag uint64) uint64 {
	return tag<<l.LineBits | line
}
