// Package mem provides the memory substrate shared by the memory components.
package mem

import (
	"fmt"
	"sort"
	"sync"
)

// A Storage keeps the bytes of a simulated memory.
//
// The storage is managed in units, similar to pages. No memory is allocated
// for units that have never been touched; untouched bytes read as zero.
type Storage struct {
	sync.RWMutex

	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage with the given capacity in bytes and 4 KB
// units.
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithUnitSize(capacity, 4*KB)
}

// NewStorageWithUnitSize creates a storage with a custom unit size.
func NewStorageWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic("unit size must not be 0")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// UnitSize returns the size of an allocation unit.
func (s *Storage) UnitSize() uint64 {
	return s.unitSize
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return fmt.Errorf(
			"accessing [0x%x, 0x%x) beyond the storage capacity 0x%x",
			address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(baseAddr uint64, create bool) []byte {
	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	s.RLock()
	defer s.RUnlock()

	res := make([]byte, length)

	for done := uint64(0); done < length; {
		baseAddr, inUnitAddr := s.parseAddress(address + done)
		n := min(length-done, s.unitSize-inUnitAddr)

		if unit := s.unit(baseAddr, false); unit != nil {
			copy(res[done:done+n], unit[inUnitAddr:inUnitAddr+n])
		}

		done += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	for done := uint64(0); done < length; {
		baseAddr, inUnitAddr := s.parseAddress(address + done)
		n := min(length-done, s.unitSize-inUnitAddr)

		unit := s.unit(baseAddr, true)
		copy(unit[inUnitAddr:inUnitAddr+n], data[done:done+n])

		done += n
	}

	return nil
}

// TouchedUnits returns the base addresses of all allocated units in ascending
// order.
func (s *Storage) TouchedUnits() []uint64 {
	s.RLock()
	defer s.RUnlock()

	units := make([]uint64, 0, len(s.data))
	for base := range s.data {
		units = append(units, base)
	}

	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	return units
}
