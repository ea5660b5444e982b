package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/dmcache/sim/hooking"
)

// A Tracer collects the tasks reported by the components it is attached to.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// CollectTrace attaches tracers to a component. The tracers of a component
// share one hook and see every task in the order they were attached.
// Attaching the same tracer twice panics.
func CollectTrace(domain NamedHookable, tracers ...Tracer) {
	h := findTraceHook(domain)
	if h == nil {
		h = &traceHook{}
		domain.AcceptHook(h)
	}

	for _, t := range tracers {
		if h.has(t) {
			panic(fmt.Sprintf("%s already has tracer %s",
				domain.Name(), reflect.TypeOf(t)))
		}

		h.tracers = append(h.tracers, t)
	}
}

func findTraceHook(domain hooking.Hookable) *traceHook {
	for _, hook := range domain.Hooks() {
		if h, ok := hook.(*traceHook); ok {
			return h
		}
	}

	return nil
}

// traceHook turns task hook positions into tracer calls.
type traceHook struct {
	tracers []Tracer
}

func (h *traceHook) has(t Tracer) bool {
	for _, existing := range h.tracers {
		if existing == t {
			return true
		}
	}

	return false
}

// Func forwards a task hook to every tracer. Other positions are ignored.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	var forward func(Tracer, Task)

	switch ctx.Pos {
	case HookPosTaskStart:
		forward = Tracer.StartTask
	case HookPosTaskStep:
		forward = Tracer.StepTask
	case HookPosTaskEnd:
		forward = Tracer.EndTask
	default:
		return
	}

	task := ctx.Item.(Task)
	for _, t := range h.tracers {
		forward(t, task)
	}
}
