package directmapped

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Layout", func() {
	DescribeTable("round trip",
		func(g Geometry, offsetBits, lineBits, tagBits int) {
			l, err := NewLayout(g)
			Expect(err).NotTo(HaveOccurred())

			Expect(l.OffsetBits).To(Equal(offsetBits))
			Expect(l.LineBits).To(Equal(lineBits))
			Expect(l.TagBits).To(Equal(tagBits))
			Expect(l.OffsetBits + l.LineBits + l.TagBits).
				To(Equal(l.AddressBits()))
			Expect(l.AddressBits()).
				To(Equal(g.BackEndAddressWidth + l.OffsetBits))

			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 2000; i++ {
				a := rng.Uint64() & mask(l.AddressBits())
				offset, line, tag := l.Split(a)

				Expect(offset).To(BeNumerically("<", uint64(l.LanesPerLine())))
				Expect(line).To(BeNumerically("<", uint64(l.NumLines())))
				Expect(l.Compose(offset, line, tag)).To(Equal(a))
			}
		},
		Entry("8/32, 16 words, 8 address bits",
			Geometry{8, 32, 16, 8}, 2, 2, 6),
		Entry("32/128, 1024 words, 24 address bits",
			Geometry{32, 128, 1024, 24}, 2, 8, 16),
		Entry("same width, no offset field",
			Geometry{32, 32, 64, 10}, 0, 6, 4),
		Entry("one line",
			Geometry{16, 64, 4, 4}, 2, 0, 4),
		Entry("64-bit address",
			Geometry{8, 64, 512, 61}, 3, 6, 55),
		Entry("64-bit words",
			Geometry{64, 512, 256, 20}, 3, 5, 15),
	)

	It("should decompose every address of a small geometry", func() {
		l, err := NewLayout(Geometry{8, 32, 16, 8})
		Expect(err).NotTo(HaveOccurred())

		for a := uint64(0); a < 1<<l.AddressBits(); a++ {
			offset, line, tag := l.Split(a)
			Expect(l.Compose(offset, line, tag)).To(Equal(a))
		}
	})

	It("should build back-end addresses from line and tag", func() {
		l, _ := NewLayout(Geometry{8, 32, 16, 8})

		offset, line, tag := l.Split(0x31)
		Expect([]uint64{offset, line, tag}).To(Equal([]uint64{1, 0, 3}))
		Expect(l.BackEndAddress(line, tag)).To(Equal(uint64(12)))
	})

	It("should map every address to its own back-end word", func() {
		l, err := NewLayout(Geometry{8, 32, 16, 8})
		Expect(err).NotTo(HaveOccurred())

		seen := make(map[[2]uint64]uint64)
		for a := uint64(0); a < 1<<l.AddressBits(); a++ {
			offset, line, tag := l.Split(a)
			backEnd := l.BackEndAddress(line, tag)
			Expect(backEnd).To(BeNumerically("<", uint64(1)<<8))

			key := [2]uint64{backEnd, offset}
			Expect(seen).NotTo(HaveKey(key))
			seen[key] = a
		}
	})

	DescribeTable("configuration errors",
		func(g Geometry, constraint string) {
			_, err := NewLayout(g)

			Expect(errors.Is(err, ErrConfig)).To(BeTrue())

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(configErr.Constraint).To(ContainSubstring(constraint))
		},
		Entry("back narrower than front",
			Geometry{32, 16, 16, 8}, "at least the front-end width"),
		Entry("back not a multiple of front",
			Geometry{16, 40, 16, 8}, "multiple of the front-end width"),
		Entry("words per line not a power of two",
			Geometry{8, 24, 16, 8}, "power of two"),
		Entry("capacity not a power of two",
			Geometry{8, 32, 12, 8}, "capacity must be a power of two"),
		Entry("zero capacity",
			Geometry{8, 32, 0, 8}, "capacity must be a power of two"),
		Entry("capacity smaller than a line",
			Geometry{8, 32, 2, 8}, "at least one line"),
		Entry("capacity beyond the address space",
			Geometry{8, 32, 1 << 12, 4}, "address space"),
		Entry("front width not whole bytes",
			Geometry{12, 48, 16, 8}, "whole bytes"),
		Entry("front width above 64 bits",
			Geometry{128, 256, 16, 8}, "64 bits"),
		Entry("address wider than 64 bits",
			Geometry{8, 64, 16, 62}, "64 bits"),
		Entry("no address bits",
			Geometry{8, 32, 16, 0}, "address width"),
	)
})
