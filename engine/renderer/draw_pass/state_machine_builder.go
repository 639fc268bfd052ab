package draw_pass

// StateMachineBuilderOption is a functional option applied to a state machine during construction via NewStateMachine.
type StateMachineBuilderOption func(*stateMachine)

// WithTransitionHook registers a callback invoked after every applied transition.
//
// Parameters:
//   - hook: called with the previous and the new pass
//
// Returns:
//   - StateMachineBuilderOption: a function that applies the hook
func WithTransitionHook(hook func(from, to DrawPass)) StateMachineBuilderOption {
	return func(m *stateMachine) {
		m.onTransition = hook
	}
}
