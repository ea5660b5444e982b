package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/sarchlab/dmcache/mem"
)

// A memory image is a zstd stream of chunks. Each chunk is a big-endian
// uint64 base address, a uint64 length and the bytes themselves. Only the
// storage units that were written are included.

func dumpMemoryFile(path string, storage *mem.Storage) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = dumpMemory(f, storage)
	if err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func dumpMemory(w io.Writer, storage *mem.Storage) error {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}

	for _, base := range storage.TouchedUnits() {
		length := storage.UnitSize()
		if base+length > storage.Capacity() {
			length = storage.Capacity() - base
		}

		data, err := storage.Read(base, length)
		if err != nil {
			enc.Close()
			return err
		}

		var header [16]byte
		binary.BigEndian.PutUint64(header[:8], base)
		binary.BigEndian.PutUint64(header[8:], length)

		if _, err := enc.Write(header[:]); err != nil {
			enc.Close()
			return err
		}

		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return err
		}
	}

	return enc.Close()
}

// loadMemory reads a memory image into a storage.
func loadMemory(r io.Reader, storage *mem.Storage) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	for {
		var header [16]byte

		_, err := io.ReadFull(dec, header[:])
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading chunk header: %w", err)
		}

		base := binary.BigEndian.Uint64(header[:8])
		length := binary.BigEndian.Uint64(header[8:])

		if length > storage.UnitSize() {
			return fmt.Errorf("chunk at 0x%x is %d bytes, larger than a unit",
				base, length)
		}

		data := make([]byte, length)

		if _, err := io.ReadFull(dec, data); err != nil {
			return fmt.Errorf("reading chunk at 0x%x: %w", base, err)
		}

		if err := storage.Write(base, data); err != nil {
			return err
		}
	}
}
