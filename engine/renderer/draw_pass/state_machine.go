package draw_pass

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// StateApplier is the primitive that applies a pass's fixed-function state. The GPU backend
// implements it.
type StateApplier interface {
	ApplyPassState(state pipeline.PassState)
}

// stateMachine is the implementation of the StateMachine interface.
type stateMachine struct {
	mu      *sync.Mutex
	applier StateApplier
	current DrawPass

	onTransition func(from, to DrawPass)
}

// StateMachine tracks the current pass and applies a pass's state only when the pass changes.
type StateMachine interface {
	// SetState switches to pass, applying its state once. Repeating the current pass is a no-op.
	// NoPass and unknown passes panic.
	//
	// Parameters:
	//   - pass: the pass to switch to
	SetState(pass DrawPass)

	// Current returns the current pass, NoPass before the first SetState or after Reset.
	//
	// Returns:
	//   - DrawPass: the current pass
	Current() DrawPass

	// Reset forgets the current pass so the next SetState applies its state again. Called when the
	// applier loses its state, for example at a frame boundary.
	Reset()
}

var _ StateMachine = &stateMachine{}

// NewStateMachine creates a state machine that applies states through applier.
//
// Parameters:
//   - applier: the state application primitive
//   - opts: a variadic list of StateMachineBuilderOption functions
//
// Returns:
//   - StateMachine: the state machine
func NewStateMachine(applier StateApplier, opts ...StateMachineBuilderOption) StateMachine {
	m := &stateMachine{
		mu:      &sync.Mutex{},
		applier: applier,
		current: NoPass,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *stateMachine) SetState(pass DrawPass) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pass == m.current {
		return
	}
	state := State(pass)
	from := m.current
	m.current = pass
	m.applier.ApplyPassState(state)
	if m.onTransition != nil {
		m.onTransition(from, pass)
	}
}

func (m *stateMachine) Current() DrawPass {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *stateMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = NoPass
}
