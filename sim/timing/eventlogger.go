package timing

import (
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/dmcache/sim/hooking"
)

// EventLogger is an engine hook that logs every event at trace level, with
// the cycle of the event in the given clock.
type EventLogger struct {
	logger logrus.FieldLogger
	freq   Freq
}

// NewEventLogger returns an EventLogger writing to logger.
func NewEventLogger(logger logrus.FieldLogger, freq Freq) *EventLogger {
	return &EventLogger{logger: logger, freq: freq}
}

type named interface {
	Name() string
}

// Func logs the event before it is handled.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	handler := reflect.TypeOf(evt.Handler()).String()
	if n, ok := evt.Handler().(named); ok {
		handler = n.Name()
	}

	h.logger.WithFields(logrus.Fields{
		"time":      float64(evt.Time()),
		"cycle":     h.freq.Cycle(evt.Time()),
		"event":     reflect.TypeOf(evt).String(),
		"handler":   handler,
		"secondary": evt.IsSecondary(),
	}).Trace("event")
}
