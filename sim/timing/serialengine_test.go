package timing

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"
)

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	mockEvent := func(t VTimeInSec, h Handler, secondary bool) *MockEvent {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(t).AnyTimes()
		evt.EXPECT().Handler().Return(h).AnyTimes()
		evt.EXPECT().IsSecondary().Return(secondary).AnyTimes()

		return evt
	}

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(4.0, handler1, false)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(3.0, handler1, false)
		evt4 := mockEvent(5.0, handler1, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(e Event) {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5.0)))
	})

	It("should consider secondary events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		handler3 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(2.0, handler1, true)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(2.0, handler3, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2)
		handleEvt3 := handler3.EXPECT().Handle(evt3)
		handler1.EXPECT().Handle(evt1).After(handleEvt2).After(handleEvt3)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())
	})

	It("should stop at the first handler error", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEvent(1.0, handler, false)
		evt2 := mockEvent(2.0, handler, false)
		boom := errors.New("boom")

		handler.EXPECT().Handle(evt1).Return(boom)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(MatchError(boom))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1.0)))
	})

	It("should panic when scheduling into the past", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEvent(2.0, handler, false)
		evt2 := mockEvent(1.0, handler, false)

		handler.EXPECT().Handle(evt1).Do(func(e Event) {
			Expect(func() { engine.Schedule(evt2) }).To(Panic())
		})

		engine.Schedule(evt1)
		Expect(engine.Run()).To(Succeed())
	})

	It("should invoke hooks around each event", func() {
		handler := NewMockHandler(mockCtrl)
		evt := mockEvent(1.0, handler, false)
		rec := &posRecorder{}
		engine.AcceptHook(rec)

		handler.EXPECT().Handle(evt)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(rec.positions).To(Equal([]string{"BeforeEvent", "AfterEvent"}))
	})

	It("should keep scheduling order among events at the same time", func() {
		handler := NewMockHandler(mockCtrl)
		evts := []*MockEvent{
			mockEvent(1.0, handler, false),
			mockEvent(1.0, handler, false),
			mockEvent(1.0, handler, false),
			mockEvent(1.0, handler, false),
		}

		var prev *gomock.Call
		for _, evt := range evts {
			call := handler.EXPECT().Handle(evt)
			if prev != nil {
				call.After(prev)
			}
			prev = call

			engine.Schedule(evt)
		}

		Expect(engine.Run()).To(Succeed())
		Expect(engine.EventsHandled()).To(Equal(uint64(4)))
	})

	It("should hold events while paused", func() {
		handler := NewMockHandler(mockCtrl)
		evt := mockEvent(1.0, handler, false)
		handled := make(chan struct{})
		handler.EXPECT().Handle(evt).Do(func(Event) { close(handled) })

		engine.Schedule(evt)
		engine.Pause()
		Expect(engine.Paused()).To(BeTrue())

		done := make(chan error, 1)
		go func() { done <- engine.Run() }()

		Consistently(handled, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(engine.EventsHandled()).To(BeZero())

		engine.Continue()

		Eventually(handled).Should(BeClosed())
		Eventually(done).Should(Receive(BeNil()))
		Expect(engine.Paused()).To(BeFalse())
	})

	It("should log events with their cycle", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.TraceLevel)
		engine.AcceptHook(NewEventLogger(logger, 1*GHz))

		handler := NewMockHandler(mockCtrl)
		evt := mockEvent(3e-9, handler, true)
		handler.EXPECT().Handle(evt)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(logs.Entries).To(HaveLen(1))
		entry := logs.LastEntry()
		Expect(entry.Level).To(Equal(logrus.TraceLevel))
		Expect(entry.Data["cycle"]).To(Equal(uint64(3)))
		Expect(entry.Data["handler"]).To(Equal("*timing.MockHandler"))
		Expect(entry.Data["secondary"]).To(BeTrue())
	})
})
