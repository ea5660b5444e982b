package bus

import "encoding/binary"

// Replicate copies a front-end word into every lane of a new line.
func Replicate(word uint64, frontBytes, lanes int) []byte {
	line := make([]byte, frontBytes*lanes)

	for lane := 0; lane < lanes; lane++ {
		putWord(line[lane*frontBytes:(lane+1)*frontBytes], word)
	}

	return line
}

// LaneMask enables the bytes of lane offset whose selector bits are set.
func LaneMask(sel uint8, offset, frontBytes, lanes int) ByteMask {
	mask := NewByteMask(uint(frontBytes * lanes))

	for j := 0; j < frontBytes; j++ {
		if sel&(1<<j) == 0 {
			continue
		}

		mask.Enable(uint(offset*frontBytes + frontBytes - 1 - j))
	}

	return mask
}

// SelectLane extracts the front-end word held in lane offset of a line.
func SelectLane(line []byte, offset, frontBytes int) uint64 {
	return getWord(line[offset*frontBytes : (offset+1)*frontBytes])
}

// FullSelector returns the selector that enables every byte of a front-end
// word.
func FullSelector(frontBytes int) uint8 {
	return uint8(uint64(1)<<frontBytes - 1)
}

func putWord(dst []byte, word uint64) {
	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], word)
	copy(dst, buf[8-len(dst):])
}

func getWord(src []byte) uint64 {
	var buf [8]byte

	copy(buf[8-len(src):], src)

	return binary.BigEndian.Uint64(buf[:])
}
