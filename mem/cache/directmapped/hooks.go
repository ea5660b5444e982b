package directmapped

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/dmcache/sim/hooking"
)

// StateRecorder is a hook that records every state transition.
type StateRecorder struct {
	Transitions []Transition
}

// Func records the transition.
func (r *StateRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosStateChange {
		return
	}

	r.Transitions = append(r.Transitions, ctx.Item.(Transition))
}

// States returns the visited states, starting from the first source state.
func (r *StateRecorder) States() []State {
	if len(r.Transitions) == 0 {
		return nil
	}

	states := []State{r.Transitions[0].From}
	for _, t := range r.Transitions {
		states = append(states, t.To)
	}

	return states
}

// EnteredAt returns the cycles in which the controller was first in the given
// state after each entry.
func (r *StateRecorder) EnteredAt(s State) []uint64 {
	var cycles []uint64

	for _, t := range r.Transitions {
		if t.To == s {
			cycles = append(cycles, t.Cycle+1)
		}
	}

	return cycles
}

// LogHook logs state transitions at debug level.
type LogHook struct {
	Logger logrus.FieldLogger
}

// NewLogHook creates a LogHook writing to the given logger.
func NewLogHook(logger logrus.FieldLogger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func logs the transition.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosStateChange {
		return
	}

	t := ctx.Item.(Transition)

	fields := logrus.Fields{
		"cycle": t.Cycle,
		"from":  t.From.String(),
		"to":    t.To.String(),
	}

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		fields["cache"] = named.Name()
	}

	h.Logger.WithFields(fields).Debug("cache state change")
}
