package status

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wppcrm/internal/bus"
)

// State is the daemon's connection state as reported to clients.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// ErrInvalidTransition is wrapped by Transition and Advance failures.
var ErrInvalidTransition = errors.New("invalid status transition")

// next lists the states reachable in one step, in preference order.
var next = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Error},
	Connecting:   {Syncing, AuthRequired, Reconnecting, Error},
	Syncing:      {Ready, Reconnecting, Degraded, AuthRequired, Error},
	Ready:        {Reconnecting, Degraded, AuthRequired, Error},
	Reconnecting: {Connecting, Syncing, Degraded, AuthRequired, Error},
	Degraded:     {Connecting, Reconnecting, Ready, AuthRequired, Error},
	Error:        {Booting, AuthRequired},
}

var descriptions = map[State]string{
	Booting:      "starting up",
	AuthRequired: "waiting for pairing (QR code or phone code)",
	Connecting:   "connecting to WhatsApp",
	Syncing:      "connected, receiving history",
	Ready:        "connected",
	Reconnecting: "connection lost, reconnecting",
	Degraded:     "connected with errors",
	Error:        "stopped after an unrecoverable error",
}

// Describe returns the one-line explanation shown next to s.
func Describe(s State) string {
	if d, ok := descriptions[s]; ok {
		return d
	}
	return string(s)
}

// CanSend reports whether sends go straight to the gateway in state s.
// Other states queue them in the outbox.
func CanSend(s State) bool {
	return s == Ready || s == Syncing
}

// StatusChange is the bus payload of a session.status_changed event.
type StatusChange struct {
	From State
	To   State
}

// Machine holds the current state and publishes every change on the bus.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine returns a machine in Booting. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition makes a single allowed step to `to`.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(next[m.current], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	m.step(to)
	return nil
}

// maxAdvance bounds how many states Advance may walk through.
const maxAdvance = 2

// Advance moves to `to` along the shortest allowed path of at most two
// steps, publishing the intermediate state. Gateway events can skip a state
// the machine has not seen, e.g. a connect arriving in AUTH_REQUIRED.
func (m *Machine) Advance(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := route(m.current, to)
	if path == nil || len(path) > maxAdvance {
		return fmt.Errorf("%w: no path %s -> %s", ErrInvalidTransition, m.current, to)
	}
	for _, s := range path {
		m.step(s)
	}
	return nil
}

// route returns the states after from on a shortest path to to, an empty
// slice when from == to, or nil when to is unreachable.
func route(from, to State) []State {
	if from == to {
		return []State{}
	}
	prev := map[State]State{from: from}
	queue := []State{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if _, seen := prev[n]; seen {
				continue
			}
			prev[n] = cur
			if n == to {
				var path []State
				for s := to; s != from; s = prev[s] {
					path = append(path, s)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, n)
		}
	}
	return nil
}

func (m *Machine) step(to State) {
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.KindSessionStatusChanged, StatusChange{From: from, To: to}))
	}
}
