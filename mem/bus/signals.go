// Package bus defines the signal records that connect memory components and
// the helpers that move front-end words in and out of back-end lines.
//
// A line is a big-endian byte slice: byte 0 is the most significant byte of
// the back-end word. A line holds several front-end lanes. Lane 0 is the most
// significant lane, so lane i occupies bytes [i*w, (i+1)*w) for a lane width
// of w bytes. Inside a lane the front-end word is stored big-endian and bit j
// of a front-end selector enables the byte holding bits 8j to 8j+7 of the
// word.
package bus

// FrontEnd carries the signals of a narrow, one-request-at-a-time
// transaction interface. The master drives Valid, WE, Sel, Adr and DatW and
// holds them stable until it samples Ack. The slave drives DatR and Ack.
type FrontEnd struct {
	Valid bool
	WE    bool
	Sel   uint8
	Adr   uint64
	DatW  uint64

	DatR uint64
	Ack  bool
}

// BackEnd carries the signals of a wide, pipelined block interface. The
// master drives Stb, WE, Adr, DatW and DatWE. The slave drives DatR, ReqAck
// and DatAck.
//
// A request is accepted in a cycle where both Stb and ReqAck are high.
// DatAck marks the cycle from which the configured latency is counted. Write
// data is sampled, and read data is valid, exactly WriteLatency or
// ReadLatency cycles after the DatAck cycle.
type BackEnd struct {
	Stb   bool
	WE    bool
	Adr   uint64
	DatW  []byte
	DatWE ByteMask

	DatR   []byte
	ReqAck bool
	DatAck bool
}

// NewBackEnd creates back-end signals for lines of lineBytes bytes.
func NewBackEnd(lineBytes int) *BackEnd {
	return &BackEnd{
		DatW:  make([]byte, lineBytes),
		DatWE: NewByteMask(uint(lineBytes)),
		DatR:  make([]byte, lineBytes),
	}
}

// BackEndConfig is the static description of a back-end port.
type BackEndConfig struct {
	// DataWidth is the width of a line in bits.
	DataWidth int

	// AddressWidth is the number of line address bits.
	AddressWidth int

	ReadLatency  int
	WriteLatency int
}

// LineBytes returns the number of bytes in a line.
func (c BackEndConfig) LineBytes() int {
	return c.DataWidth / 8
}
