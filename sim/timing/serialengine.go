package timing

import (
	"log"
	"reflect"
	"sync"

	"github.com/sarchlab/dmcache/sim/hooking"
)

// A SerialEngine runs events one after another on the goroutine that calls
// Run. Schedule, Pause, Continue, CurrentTime and EventsHandled may be called
// from other goroutines.
type SerialEngine struct {
	hooking.HookableBase

	mu      sync.Mutex
	resumed *sync.Cond
	time    VTimeInSec
	queue   *eventQueue
	paused  bool
	handled uint64

	running sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := &SerialEngine{queue: newEventQueue()}
	e.resumed = sync.NewCond(&e.mu)

	return e
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Schedule registers an event to happen in the future.
func (e *SerialEngine) Schedule(evt Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if evt.Time() < e.time {
		log.Panicf("scheduling %s at %.10f, before the current time %.10f",
			reflect.TypeOf(evt), evt.Time(), e.time)
	}

	e.queue.push(evt)
}

// Run handles events until none is left or a handler returns an error.
func (e *SerialEngine) Run() error {
	e.running.Lock()
	defer e.running.Unlock()

	for {
		evt, ok := e.next()
		if !ok {
			return nil
		}

		ctx := hooking.HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   evt,
		}
		e.InvokeHook(ctx)

		err := evt.Handler().Handle(evt)

		ctx.Pos = HookPosAfterEvent
		e.InvokeHook(ctx)

		if err != nil {
			return err
		}
	}
}

// next waits while the engine is paused, then takes the earliest event and
// advances the time to it.
func (e *SerialEngine) next() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.paused {
		e.resumed.Wait()
	}

	if e.queue.len() == 0 {
		return nil, false
	}

	evt := e.queue.pop()
	e.time = evt.Time()
	e.handled++

	return evt, true
}

// Pause stops the engine before the next event. The event being handled, if
// any, completes.
func (e *SerialEngine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Continue lets a paused engine handle events again.
func (e *SerialEngine) Continue() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()

	e.resumed.Broadcast()
}

// Paused tells if the engine is paused.
func (e *SerialEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.paused
}

// CurrentTime returns the time of the event being handled, or of the last
// handled event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.time
}

// EventsHandled returns the number of events taken from the queue.
func (e *SerialEngine) EventsHandled() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.handled
}
