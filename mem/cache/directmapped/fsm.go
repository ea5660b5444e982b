package directmapped

// State is a state of the cache controller.
type State int

// The controller states. StateIdle is the initial state.
const (
	StateIdle State = iota
	StateTestHit
	StateEvictRequest
	StateEvictWaitDataAck
	StateEvictDataDelay
	StateEvictData
	StateRefillWriteTag
	StateRefillRequest
	StateRefillWaitDataAck
	StateRefillDataDelay
	StateRefillData

	numStates
)

var stateNames = [numStates]string{
	"IDLE",
	"TEST_HIT",
	"EVICT_REQUEST",
	"EVICT_WAIT_DATA_ACK",
	"EVICT_DATAD",
	"EVICT_DATA",
	"REFILL_WRTAG",
	"REFILL_REQUEST",
	"REFILL_WAIT_DATA_ACK",
	"REFILL_DATAD",
	"REFILL_DATA",
}

func (s State) String() string {
	if s < 0 || s >= numStates {
		return "UNKNOWN"
	}

	return stateNames[s]
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	states := make([]State, numStates)
	for i := range states {
		states[i] = State(i)
	}

	return states
}

// fsmState is the full controller state. Countdown is the number of cycles
// left in a delay state, including the current one.
type fsmState struct {
	State     State
	Countdown int
}

type inputs struct {
	request bool
	write   bool
	hit     bool
	dirty   bool
	reqAck  bool
	datAck  bool
}

type outputs struct {
	ack bool

	// Front-end write hit: set the dirty bit and write the selected lane.
	writeHit bool

	stb bool
	we  bool

	// Drive the line store output onto the back-end write data.
	evictData bool

	// Write the request tag, valid and clean.
	refillTag bool

	// Write the back-end read data into the whole line.
	refillData bool
}

type latencies struct {
	read  int
	write int
}

// enterDelayed returns the state reached delay cycles before target. With no
// delay the target is entered directly.
func enterDelayed(delayState, target State, delay int) fsmState {
	if delay <= 0 {
		return fsmState{State: target}
	}

	return fsmState{State: delayState, Countdown: delay}
}

func countDown(s fsmState, target State) fsmState {
	if s.Countdown > 1 {
		return fsmState{State: s.State, Countdown: s.Countdown - 1}
	}

	return fsmState{State: target}
}

// step evaluates one cycle of the controller.
func step(s fsmState, in inputs, lat latencies) (fsmState, outputs) {
	var out outputs

	switch s.State {
	case StateIdle:
		if in.request {
			return fsmState{State: StateTestHit}, out
		}

	case StateTestHit:
		switch {
		case in.hit:
			out.ack = true
			out.writeHit = in.write

			return fsmState{State: StateIdle}, out
		case in.dirty:
			return fsmState{State: StateEvictRequest}, out
		default:
			return fsmState{State: StateRefillWriteTag}, out
		}

	case StateEvictRequest:
		out.stb = true
		out.we = true

		if in.reqAck {
			return fsmState{State: StateEvictWaitDataAck}, out
		}

	case StateEvictWaitDataAck:
		if in.datAck {
			return enterDelayed(
				StateEvictDataDelay, StateEvictData, lat.write-1), out
		}

	case StateEvictDataDelay:
		return countDown(s, StateEvictData), out

	case StateEvictData:
		out.evictData = true
		return fsmState{State: StateRefillWriteTag}, out

	case StateRefillWriteTag:
		out.refillTag = true
		return fsmState{State: StateRefillRequest}, out

	case StateRefillRequest:
		out.stb = true

		if in.reqAck {
			return fsmState{State: StateRefillWaitDataAck}, out
		}

	case StateRefillWaitDataAck:
		if in.datAck {
			return enterDelayed(
				StateRefillDataDelay, StateRefillData, lat.read-1), out
		}

	case StateRefillDataDelay:
		return countDown(s, StateRefillData), out

	case StateRefillData:
		out.refillData = true
		return fsmState{State: StateTestHit}, out

	default:
		panic("unknown cache state " + s.State.String())
	}

	return s, out
}
