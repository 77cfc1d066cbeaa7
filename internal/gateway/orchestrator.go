package gateway

import (
	"errors"
)

// RequestState names one of the five states a single HTTP request moves
// through on its way to a D-Bus reply.
type RequestState int

const (
	StateAccepted RequestState = iota
	StateSuspended
	StateIntrospected
	StateDispatched
	StateFinalized
)

func (s RequestState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateSuspended:
		return "suspended"
	case StateIntrospected:
		return "introspected"
	case StateDispatched:
		return "dispatched"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a request tries to skip a state on
// the way to Dispatched or re-enter one it has already left. Finalize is
// accepted from every state except Finalized itself.
var ErrInvalidTransition = errors.New("gateway: invalid request state transition")

// requestMachine holds one request's position in the state machine. A
// request is handled start to finish on the single goroutine net/http hands
// the handler, and every bus call on that path (busclient's CallWithContext)
// blocks that same goroutine rather than delivering its reply on another
// one, so the handler calling these methods directly, in order, is already
// race-free: there is no second goroutine for a mutex or actor to guard
// against.
type requestMachine struct {
	state RequestState
}

func newRequestMachine() *requestMachine {
	return &requestMachine{state: StateAccepted}
}

// Current reports the request's state.
func (m *requestMachine) Current() RequestState {
	return m.state
}

// Suspend marks the request as waiting on a bus round trip (introspection
// or, for a bare property fetch, the GetAll call itself).
func (m *requestMachine) Suspend() (RequestState, error) {
	if m.state != StateAccepted {
		return m.state, ErrInvalidTransition
	}
	m.state = StateSuspended
	return m.state, nil
}

// MarkIntrospected records that the target object's introspection document
// has been fetched and parsed.
func (m *requestMachine) MarkIntrospected() (RequestState, error) {
	if m.state != StateSuspended {
		return m.state, ErrInvalidTransition
	}
	m.state = StateIntrospected
	return m.state, nil
}

// MarkDispatched records that the resolved method call has been sent to
// the bus and the gateway is waiting on its reply.
func (m *requestMachine) MarkDispatched() (RequestState, error) {
	if m.state != StateIntrospected {
		return m.state, ErrInvalidTransition
	}
	m.state = StateDispatched
	return m.state, nil
}

// Finalize records that a response (success or error) has been written and
// no further transitions are possible.
func (m *requestMachine) Finalize() (RequestState, error) {
	if m.state == StateFinalized {
		return m.state, ErrInvalidTransition
	}
	m.state = StateFinalized
	return m.state, nil
}
