package blockmem

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dmcache/mem"
	"github.com/sarchlab/dmcache/mem/bus"
	"github.com/sarchlab/dmcache/sim/hooking"
)

type doneRecorder struct {
	transfers []Transfer
}

func (r *doneRecorder) Func(ctx hooking.HookCtx) {
	r.transfers = append(r.transfers, ctx.Item.(Transfer))
}

var _ = Describe("Comp", func() {
	var (
		config   bus.BackEndConfig
		builder  Builder
		m        *Comp
		s        *bus.BackEnd
		recorder *doneRecorder
	)

	// cycle evaluates one clock cycle with the master driving the signals
	// between the two phases, the way a clock domain orders them.
	cycle := func(c uint64, drive func()) {
		m.Comb(c)

		if drive != nil {
			drive()
		}

		m.Sync(c)
	}

	strobe := func(write bool, addr uint64) func() {
		return func() {
			s.Stb = true
			s.WE = write
			s.Adr = addr
		}
	}

	release := func() {
		s.Stb = false
	}

	build := func() {
		var err error

		m, err = builder.Build("Memory")
		Expect(err).NotTo(HaveOccurred())

		s = m.Signals()
		recorder = &doneRecorder{}
		m.AcceptHook(recorder)
	}

	BeforeEach(func() {
		config = bus.BackEndConfig{
			DataWidth:    32,
			AddressWidth: 8,
			ReadLatency:  1,
			WriteLatency: 1,
		}
		builder = MakeBuilder().WithConfig(config)
	})

	It("should return read data latency cycles after the data ack", func() {
		builder = builder.WithConfig(bus.BackEndConfig{
			DataWidth: 32, AddressWidth: 8, ReadLatency: 2, WriteLatency: 1,
		}).WithAckDelay(2)
		build()
		Expect(m.Storage.Write(12, []byte{1, 2, 3, 4})).To(Succeed())

		cycle(0, strobe(false, 3))
		Expect(s.ReqAck).To(BeTrue())

		datAck := []bool{}
		datR := [][]byte{}

		for c := uint64(1); c <= 5; c++ {
			cycle(c, release)
			datAck = append(datAck, s.DatAck)
			datR = append(datR, append([]byte(nil), s.DatR...))
		}

		Expect(datAck).To(Equal([]bool{false, true, false, false, false}))
		Expect(datR[3]).To(Equal([]byte{1, 2, 3, 4}))
		Expect(datR[2]).To(Equal([]byte{filler, filler, filler, filler}))
		Expect(datR[4]).To(Equal([]byte{filler, filler, filler, filler}))

		Expect(recorder.transfers).To(HaveLen(1))
		t := recorder.transfers[0]
		Expect(t.Write).To(BeFalse())
		Expect(t.AcceptedAt).To(Equal(uint64(0)))
		Expect(t.DataAckAt).To(Equal(uint64(2)))
		Expect(t.DataAt).To(Equal(uint64(4)))
		Expect(t.Data).To(Equal([]byte{1, 2, 3, 4}))
		Expect(m.Busy()).To(BeFalse())
	})

	It("should write only the enabled bytes", func() {
		build()
		Expect(m.Storage.Write(20, []byte{1, 2, 3, 4})).To(Succeed())

		cycle(0, strobe(true, 5))
		cycle(1, release)
		Expect(s.DatAck).To(BeTrue())

		cycle(2, func() {
			copy(s.DatW, []byte{0xA, 0xB, 0xC, 0xD})
			s.DatWE.Clear()
			s.DatWE.Enable(1)
			s.DatWE.Enable(3)
		})

		data, err := m.Storage.Read(20, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 0xB, 3, 0xD}))

		Expect(recorder.transfers).To(HaveLen(1))
		Expect(recorder.transfers[0].Write).To(BeTrue())
		Expect(recorder.transfers[0].Data).To(Equal(data))
		Expect(m.Stats().Writes).To(Equal(uint64(1)))
		Expect(m.Stats().BytesWritten).To(Equal(uint64(2)))
	})

	It("should hold the request ack until the strobe is held long enough", func() {
		builder = builder.WithReqAckDelay(2)
		build()

		readies := []bool{}
		for c := uint64(0); c < 3; c++ {
			cycle(c, strobe(false, 1))
			readies = append(readies, s.ReqAck)
		}

		Expect(readies).To(Equal([]bool{false, false, true}))
		Expect(m.Busy()).To(BeTrue())

		cycle(3, release)
		Expect(s.DatAck).To(BeTrue())
	})

	It("should restart the request ack delay when the strobe drops", func() {
		builder = builder.WithReqAckDelay(2)
		build()

		cycle(0, strobe(false, 1))
		cycle(1, release)
		cycle(2, strobe(false, 1))
		Expect(s.ReqAck).To(BeFalse())
		Expect(m.Busy()).To(BeFalse())
	})

	It("should pipeline requests", func() {
		builder = builder.WithConfig(bus.BackEndConfig{
			DataWidth: 32, AddressWidth: 8, ReadLatency: 3, WriteLatency: 3,
		})
		build()

		for c := uint64(0); c < 3; c++ {
			cycle(c, strobe(false, c))
		}

		for c := uint64(3); c < 8; c++ {
			cycle(c, release)
		}

		Expect(m.Stats().MaxInFlight).To(Equal(3))
		Expect(m.Stats().Reads).To(Equal(uint64(3)))
		Expect(m.Stats().BytesRead).To(Equal(uint64(12)))

		Expect(recorder.transfers).To(HaveLen(3))
		for i, t := range recorder.transfers {
			Expect(t.Address).To(Equal(uint64(i)))
			Expect(t.DataAt).To(Equal(uint64(i) + 4))
		}
	})

	It("should ignore address bits beyond the address width", func() {
		build()

		cycle(0, strobe(false, 0x1FF))
		cycle(1, release)
		cycle(2, nil)

		Expect(recorder.transfers[0].Address).To(Equal(uint64(0xFF)))
	})

	It("should serve an existing storage", func() {
		storage := mem.NewStorage(4 * mem.KB)
		Expect(storage.Write(4, []byte{9, 8, 7, 6})).To(Succeed())
		builder = builder.WithStorage(storage)
		build()

		cycle(0, strobe(false, 1))
		cycle(1, release)
		cycle(2, nil)

		Expect(recorder.transfers[0].Data).To(Equal([]byte{9, 8, 7, 6}))
	})
})

var _ = Describe("Builder", func() {
	valid := bus.BackEndConfig{
		DataWidth: 32, AddressWidth: 8, ReadLatency: 1, WriteLatency: 1,
	}

	DescribeTable("invalid configurations",
		func(b Builder) {
			_, err := b.Build("Memory")
			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
		},
		Entry("partial bytes", MakeBuilder().WithConfig(bus.BackEndConfig{
			DataWidth: 30, AddressWidth: 8, ReadLatency: 1, WriteLatency: 1,
		})),
		Entry("no address bits", MakeBuilder().WithConfig(bus.BackEndConfig{
			DataWidth: 32, AddressWidth: 0, ReadLatency: 1, WriteLatency: 1,
		})),
		Entry("zero latency", MakeBuilder().WithConfig(bus.BackEndConfig{
			DataWidth: 32, AddressWidth: 8, ReadLatency: 1, WriteLatency: 0,
		})),
		Entry("zero ack delay",
			MakeBuilder().WithConfig(valid).WithAckDelay(0)),
		Entry("negative request ack delay",
			MakeBuilder().WithConfig(valid).WithReqAckDelay(-1)),
		Entry("mismatched signals",
			MakeBuilder().WithConfig(valid).WithSignals(bus.NewBackEnd(8))),
		Entry("small storage",
			MakeBuilder().WithConfig(valid).WithStorage(mem.NewStorage(512))),
	)

	It("should size the storage to the address space", func() {
		m, err := MakeBuilder().WithConfig(valid).Build("Memory")

		Expect(err).NotTo(HaveOccurred())
		Expect(m.Storage.Capacity()).To(Equal(uint64(1024)))
		Expect(m.Config()).To(Equal(valid))
	})
})
