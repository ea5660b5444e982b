package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/dmcache/sim/hooking"
)

var _ = Describe("Api", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(1).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic if ID is not given", func() {
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain is nil", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain's name is empty", func() {
		domain.EXPECT().Name().Return("").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if kind is empty", func() {
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
	})

	It("should panic if what is empty", func() {
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should invoke hooks with a located task", func() {
		domain.EXPECT().Name().Return("Cache").AnyTimes()
		domain.EXPECT().InvokeHook(gomock.Any()).Do(func(ctx hooking.HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStart))
			task := ctx.Item.(Task)
			Expect(task.ID).To(Equal("id"))
			Expect(task.Location).To(Equal("Cache"))
			Expect(task.Kind).To(Equal("req_in"))
		})

		StartTask("id", "", domain, "req_in", "read", nil)
	})

	It("should send steps and ends", func() {
		step := domain.EXPECT().InvokeHook(gomock.Any()).Do(
			func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStep))
				Expect(ctx.Item.(Task).Steps[0].What).To(Equal("hit"))
			})
		domain.EXPECT().InvokeHook(gomock.Any()).Do(
			func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskEnd))
			}).After(step)

		AddTaskStep("id", domain, "hit")
		EndTask("id", domain)
	})

	It("should skip hooks when none are registered", func() {
		quiet := NewMockNamedHookable(mockCtrl)
		quiet.EXPECT().NumHooks().Return(0).AnyTimes()

		StartTask("id", "", quiet, "req_in", "read", nil)
		AddTaskStep("id", quiet, "hit")
		EndTask("id", quiet)
	})
})

var _ = Describe("CollectTrace", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
		tracer   *MockTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
		tracer = NewMockTracer(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should route hook positions to the tracer", func() {
		var hook hooking.Hook

		domain.EXPECT().Hooks().Return(nil)
		domain.EXPECT().AcceptHook(gomock.Any()).Do(func(h hooking.Hook) {
			hook = h
		})

		CollectTrace(domain, tracer)

		task := Task{ID: "1"}
		tracer.EXPECT().StartTask(task)
		tracer.EXPECT().StepTask(task)
		tracer.EXPECT().EndTask(task)

		hook.Func(hooking.HookCtx{Pos: HookPosTaskStart, Item: task})
		hook.Func(hooking.HookCtx{Pos: HookPosTaskStep, Item: task})
		hook.Func(hooking.HookCtx{Pos: HookPosTaskEnd, Item: task})
		hook.Func(hooking.HookCtx{Pos: &hooking.HookPos{Name: "Other"}})
	})

	It("should panic when attaching the same tracer twice", func() {
		existing := &traceHook{tracers: []Tracer{tracer}}
		domain.EXPECT().Hooks().Return([]hooking.Hook{existing})
		domain.EXPECT().Name().Return("Cache")

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})

	It("should share one hook between tracers", func() {
		var hook hooking.Hook
		second := NewMockTracer(mockCtrl)
		third := NewMockTracer(mockCtrl)

		domain.EXPECT().Hooks().Return(nil)
		domain.EXPECT().AcceptHook(gomock.Any()).Do(func(h hooking.Hook) {
			hook = h
		})
		CollectTrace(domain, tracer, second)

		domain.EXPECT().Hooks().DoAndReturn(func() []hooking.Hook {
			return []hooking.Hook{hook}
		})
		CollectTrace(domain, third)

		task := Task{ID: "1"}
		first := tracer.EXPECT().EndTask(task)
		next := second.EXPECT().EndTask(task).After(first)
		third.EXPECT().EndTask(task).After(next)

		hook.Func(hooking.HookCtx{Pos: HookPosTaskEnd, Item: task})
	})
})
