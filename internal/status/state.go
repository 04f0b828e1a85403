package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/chatflow/internal/bus"
)

// State is a named state in one of the machines below.
type State string

// Conversation phases.
const (
	Idle    State = "IDLE"
	Loading State = "LOADING"
	Ready   State = "READY"
)

// Realtime channel states.
const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Failed       State = "FAILED"
)

// Transitions maps each state to the states it may move to.
type Transitions map[State][]State

// ConversationPhases governs the active conversation. Loading->Loading covers
// reselecting while a fetch is outstanding; ->Idle covers logout.
var ConversationPhases = Transitions{
	Idle:    {Loading},
	Loading: {Loading, Ready, Idle},
	Ready:   {Loading, Idle},
}

// ChannelStates governs the realtime connection.
var ChannelStates = Transitions{
	Disconnected: {Connecting},
	Connecting:   {Connected, Reconnecting, Failed, Disconnected},
	Connected:    {Reconnecting, Disconnected},
	Reconnecting: {Connected, Failed, Disconnected},
	Failed:       {Connecting, Disconnected},
}

// Machine tracks and enforces state transitions, publishing each change.
type Machine struct {
	mu      sync.RWMutex
	current State
	table   Transitions
	bus     *bus.Bus
	kind    string
}

// NewMachine creates a machine in the initial state. Every accepted transition
// publishes a Change under kind when b is non-nil.
func NewMachine(initial State, table Transitions, b *bus.Bus, kind string) *Machine {
	return &Machine{
		current: initial,
		table:   table,
		bus:     b,
		kind:    kind,
	}
}

// NewConversationMachine creates the phase machine for the sync engine.
func NewConversationMachine(b *bus.Bus) *Machine {
	return NewMachine(Idle, ConversationPhases, b, bus.ConversationPhaseChanged)
}

// NewChannelMachine creates the connection machine for the transport.
func NewChannelMachine(b *bus.Bus) *Machine {
	return NewMachine(Disconnected, ChannelStates, b, bus.TransportStateChanged)
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in one of the given states.
func (m *Machine) Is(states ...State) bool {
	return slices.Contains(states, m.Current())
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := m.table[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(m.kind, Change{From: from, To: to})
	}
	return nil
}

// Force moves to a state unconditionally. Used when an external reset
// (logout, teardown) must win over the transition table.
func (m *Machine) Force(to State) {
	m.mu.Lock()
	from := m.current
	m.current = to
	m.mu.Unlock()
	if from != to && m.bus != nil {
		m.bus.Emit(m.kind, Change{From: from, To: to})
	}
}

// Change is the payload for state change events.
type Change struct {
	From State
	To   State
}
