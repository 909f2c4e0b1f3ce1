package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc evaluates whether a transition should be allowed. When it
// returns false the reason explains which rule blocked the transition.
type GuardFunc func(ctx context.Context) (ok bool, reason string)

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// GuardEntry layers a guard on every transition into the given state
	GuardEntry(state State, guard GuardFunc) StateMachineBuilder

	// Build creates a new state machine instance with the given initial state
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions out of a specific state
type StateConfiguration interface {
	// Permit allows a transition to the target state
	Permit(toState State) StateConfiguration

	// PermitIf allows a transition to the target state if the guard condition passes
	PermitIf(toState State, guard GuardFunc) StateConfiguration
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	fromState   State
	transitions map[State]GuardFunc
}

// stateMachineBuilder implements StateMachineBuilder
type stateMachineBuilder struct {
	configurations map[State]*stateConfig
	entryGuards    map[State][]GuardFunc
}

// stateMachine implements StateMachine
type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
	entryGuards    map[State][]GuardFunc
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
		entryGuards:    make(map[State][]GuardFunc),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[State]GuardFunc),
		}
		b.configurations[state] = config
	}

	return config
}

// GuardEntry layers a guard on every transition into the given state
func (b *stateMachineBuilder) GuardEntry(state State, guard GuardFunc) StateMachineBuilder {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid guarded state: %s", state))
	}
	b.entryGuards[state] = append(b.entryGuards[state], guard)
	return b
}

// Build creates a new state machine instance with the given initial state
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	// Copy so later Configure calls do not leak into built machines
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[State]GuardFunc, len(config.transitions))
		for to, guard := range config.transitions {
			transitionsCopy[to] = guard
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	guardsCopy := make(map[State][]GuardFunc, len(b.entryGuards))
	for state, guards := range b.entryGuards {
		guardsCopy[state] = append([]GuardFunc{}, guards...)
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configsCopy,
		entryGuards:    guardsCopy,
	}
}

// Permit allows a transition to the target state
func (c *stateConfig) Permit(toState State) StateConfiguration {
	return c.PermitIf(toState, nil)
}

// PermitIf allows a transition to the target state if the guard condition passes
func (c *stateConfig) PermitIf(toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.transitions[toState] = guard
	return c
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanTransitionTo reports whether the transition is legal without mutating state
func (m *stateMachine) CanTransitionTo(ctx context.Context, to State) (bool, string) {
	if _, err := m.check(ctx, to); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// TransitionTo moves the machine to the target state if legal
func (m *stateMachine) TransitionTo(ctx context.Context, to State) error {
	if _, err := m.check(ctx, to); err != nil {
		return err
	}
	m.currentState = to
	return nil
}

// check runs adjacency first, then the edge guard, then entry guards
func (m *stateMachine) check(ctx context.Context, to State) (State, error) {
	if !to.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidState, to)
	}

	config, exists := m.configurations[m.currentState]
	if !exists {
		return "", fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrInvalidTransition, m.currentState, to)
	}

	guard, permitted := config.transitions[to]
	if !permitted {
		return "", fmt.Errorf("%w: %s -> %s is not permitted", ErrInvalidTransition, m.currentState, to)
	}

	if guard != nil {
		if ok, reason := guard(ctx); !ok {
			return "", fmt.Errorf("%w: %s -> %s: %s", ErrGuardFailed, m.currentState, to, reason)
		}
	}

	for _, entry := range m.entryGuards[to] {
		if ok, reason := entry(ctx); !ok {
			return "", fmt.Errorf("%w: %s -> %s: %s", ErrGuardFailed, m.currentState, to, reason)
		}
	}

	return to, nil
}

// PermittedStates returns the adjacent states reachable from the current state
func (m *stateMachine) PermittedStates() []State {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []State{}
	}

	states := make([]State, 0, len(config.transitions))
	for to := range config.transitions {
		states = append(states, to)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

	return states
}
