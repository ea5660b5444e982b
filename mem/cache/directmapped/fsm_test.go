package directmapped

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FSM", func() {
	lat := latencies{read: 1, write: 1}

	at := func(s State) fsmState { return fsmState{State: s} }

	It("should wait in idle without a request", func() {
		next, out := step(at(StateIdle), inputs{}, lat)

		Expect(next).To(Equal(at(StateIdle)))
		Expect(out).To(Equal(outputs{}))
	})

	It("should test the tag once a request arrives", func() {
		next, _ := step(at(StateIdle), inputs{request: true}, lat)

		Expect(next).To(Equal(at(StateTestHit)))
	})

	It("should acknowledge a read hit", func() {
		next, out := step(at(StateTestHit),
			inputs{request: true, hit: true, dirty: true}, lat)

		Expect(next).To(Equal(at(StateIdle)))
		Expect(out.ack).To(BeTrue())
		Expect(out.writeHit).To(BeFalse())
	})

	It("should write on a write hit", func() {
		_, out := step(at(StateTestHit),
			inputs{request: true, write: true, hit: true}, lat)

		Expect(out.ack).To(BeTrue())
		Expect(out.writeHit).To(BeTrue())
	})

	It("should refill on a clean miss", func() {
		next, out := step(at(StateTestHit), inputs{request: true}, lat)

		Expect(next).To(Equal(at(StateRefillWriteTag)))
		Expect(out.ack).To(BeFalse())
	})

	It("should evict on a dirty miss", func() {
		next, _ := step(at(StateTestHit),
			inputs{request: true, dirty: true}, lat)

		Expect(next).To(Equal(at(StateEvictRequest)))
	})

	It("should hold the write strobe until the request is acknowledged", func() {
		next, out := step(at(StateEvictRequest), inputs{}, lat)
		Expect(next).To(Equal(at(StateEvictRequest)))
		Expect(out.stb).To(BeTrue())
		Expect(out.we).To(BeTrue())

		next, _ = step(at(StateEvictRequest), inputs{reqAck: true}, lat)
		Expect(next).To(Equal(at(StateEvictWaitDataAck)))
	})

	It("should ignore data acks while waiting for the request ack", func() {
		next, _ := step(at(StateRefillRequest), inputs{datAck: true}, lat)

		Expect(next).To(Equal(at(StateRefillRequest)))
	})

	It("should enter the data state right after the data ack with latency 1",
		func() {
			next, _ := step(at(StateEvictWaitDataAck),
				inputs{datAck: true}, lat)
			Expect(next).To(Equal(at(StateEvictData)))

			next, _ = step(at(StateRefillWaitDataAck),
				inputs{datAck: true}, lat)
			Expect(next).To(Equal(at(StateRefillData)))
		})

	It("should count down latency minus one delay cycles", func() {
		slow := latencies{read: 4, write: 3}

		s, _ := step(at(StateRefillWaitDataAck), inputs{datAck: true}, slow)
		Expect(s).To(Equal(fsmState{State: StateRefillDataDelay, Countdown: 3}))

		delays := 0
		for s.State == StateRefillDataDelay {
			s, _ = step(s, inputs{}, slow)
			delays++
		}

		Expect(delays).To(Equal(3))
		Expect(s).To(Equal(at(StateRefillData)))
	})

	It("should drive the line out in the evict data state", func() {
		next, out := step(at(StateEvictData), inputs{}, lat)

		Expect(next).To(Equal(at(StateRefillWriteTag)))
		Expect(out.evictData).To(BeTrue())
		Expect(out.stb).To(BeFalse())
	})

	It("should write the tag before requesting the refill", func() {
		next, out := step(at(StateRefillWriteTag), inputs{}, lat)
		Expect(next).To(Equal(at(StateRefillRequest)))
		Expect(out.refillTag).To(BeTrue())

		next, out = step(at(StateRefillRequest), inputs{reqAck: true}, lat)
		Expect(next).To(Equal(at(StateRefillWaitDataAck)))
		Expect(out.stb).To(BeTrue())
		Expect(out.we).To(BeFalse())
	})

	It("should test the tag again after the refill", func() {
		next, out := step(at(StateRefillData), inputs{}, lat)

		Expect(next).To(Equal(at(StateTestHit)))
		Expect(out.refillData).To(BeTrue())
	})

	It("should name every state", func() {
		for _, s := range AllStates() {
			Expect(s.String()).NotTo(Equal("UNKNOWN"))
		}

		Expect(State(-1).String()).To(Equal("UNKNOWN"))
		Expect(StateEvictDataDelay.String()).To(Equal("EVICT_DATAD"))
	})
})
