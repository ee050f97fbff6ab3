// Package agent holds the per-agent lifecycle state and conversation memory.
package agent

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/internal/llm"
)

// State is the lifecycle position of an agent.
type State string

const (
	StateDiscovery   State = "Discovery"
	StateWorking     State = "Working"
	StateUnitTesting State = "UnitTesting"
	StateFinished    State = "Finished"
)

// ErrInvalidTransition is wrapped by every rejected state change.
var ErrInvalidTransition = errors.New("invalid agent state transition")

var transitions = map[State]map[State]struct{}{
	StateDiscovery: {
		StateWorking:     {},
		StateUnitTesting: {},
		StateFinished:    {},
	},
	StateWorking: {
		StateWorking:     {},
		StateUnitTesting: {},
		StateFinished:    {},
	},
	StateUnitTesting: {
		StateWorking:  {},
		StateFinished: {},
	},
	StateFinished: {},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Agent is the identity and memory of one pipeline participant.
// It is owned by a single stage and is not safe for concurrent use.
type Agent struct {
	objective string
	position  string
	state     State
	memory    []llm.Message
}

// New creates an agent in Discovery with empty memory.
func New(objective, position string) *Agent {
	return &Agent{
		objective: objective,
		position:  position,
		state:     StateDiscovery,
	}
}

func (a *Agent) Objective() string { return a.objective }

func (a *Agent) Position() string { return a.position }

func (a *Agent) State() State { return a.state }

// Memory returns a copy of the conversation history in append order.
func (a *Agent) Memory() []llm.Message {
	out := make([]llm.Message, len(a.memory))
	copy(out, a.memory)
	return out
}

// Remember appends msg to the agent's memory.
func (a *Agent) Remember(msg llm.Message) {
	a.memory = append(a.memory, msg)
}

// Transition moves the agent to next if the transition table allows it.
func (a *Agent) Transition(next State) error {
	if !CanTransition(a.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, next)
	}
	a.state = next
	return nil
}
