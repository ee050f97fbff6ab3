// Package agents implements the pipeline stages: the solutions architect,
// the backend developer and the unit tester. Each stage owns an agent
// identity and executes against the project record it is handed.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/logging"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/pkg/blackboard"
	"go.uber.org/zap"
)

// ErrPrerequisite is wrapped when a stage runs before the record fields it
// reads have been written.
var ErrPrerequisite = errors.New("stage prerequisite not met")

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, record *blackboard.ProjectRecord) error
	State() agent.State
}

// Console receives the user-facing progress lines of a stage.
type Console interface {
	Agent(position, statement string, kind printer.Command)
}

// Env is what every stage shares.
type Env struct {
	Decoder *task.Decoder
	Console Console
	Journal blackboard.Journal
	Logger  *zap.Logger
}

type nopConsole struct{}

func (nopConsole) Agent(string, string, printer.Command) {}

// base carries an agent identity and the shared environment.
type base struct {
	agent   *agent.Agent
	decoder *task.Decoder
	console Console
	journal blackboard.Journal
	logger  *zap.Logger
}

func newBase(env Env, objective, position, component string) base {
	b := base{
		agent:   agent.New(objective, position),
		decoder: env.Decoder,
		console: env.Console,
		journal: env.Journal,
		logger:  logging.Component(env.Logger, component),
	}
	if b.console == nil {
		b.console = nopConsole{}
	}
	if b.journal == nil {
		b.journal = blackboard.NopJournal{}
	}
	return b
}

// State returns the stage agent's lifecycle state.
func (b *base) State() agent.State {
	return b.agent.State()
}

// Agent exposes the stage's agent identity.
func (b *base) Agent() *agent.Agent {
	return b.agent
}

// request sends a task with the agent's memory replayed ahead of it.
func (b *base) request(ctx context.Context, kind task.Kind, operation, input string) (string, error) {
	return b.decoder.Request(ctx, b.taskRequest(kind, operation, input))
}

func (b *base) taskRequest(kind task.Kind, operation, input string) task.Request {
	return task.Request{
		Context:   input,
		History:   b.agent.Memory(),
		Agent:     b.agent.Position(),
		Operation: operation,
		Kind:      kind,
	}
}

func decode[T any](ctx context.Context, b *base, kind task.Kind, operation, input string) (T, error) {
	return task.Decode[T](ctx, b.decoder, b.taskRequest(kind, operation, input))
}

func (b *base) say(statement string, kind printer.Command) {
	b.console.Agent(b.agent.Position(), statement, kind)
}

func (b *base) transition(next agent.State) error {
	if err := b.agent.Transition(next); err != nil {
		return fault.Fatal(fault.KindStage, b.agent.Position(), err)
	}
	b.logger.Debug("agent state changed",
		zap.String("event_type", "agent_state_changed"),
		zap.String("state", string(next)))
	return nil
}

// record journals a stage output. Journal failures are logged and never
// fail the stage.
func (b *base) record(ctx context.Context, typ, payload string, structural blackboard.StructuralType) {
	a, err := b.journal.Record(ctx, blackboard.Entry{
		Type:       typ,
		Role:       b.agent.Position(),
		Payload:    payload,
		Structural: structural,
	})
	if err != nil {
		b.logger.Warn("failed to journal artefact",
			zap.String("event_type", "journal_failed"),
			zap.String("type", typ),
			zap.Error(err))
		return
	}
	if a != nil {
		b.logger.Debug("artefact journaled",
			zap.String("event_type", "artefact_recorded"),
			zap.String("type", typ),
			zap.String("artefact_id", a.ID),
			zap.Int("version", a.Version))
	}
}

func (b *base) recordJSON(ctx context.Context, typ string, v any) {
	b.record(ctx, typ, mustJSON(v), blackboard.StructuralTypeStandard)
}

// mustJSON encodes values that are known to marshal.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("agents: marshal %T: %v", v, err))
	}
	return string(data)
}

func (b *base) remember(role llm.Role, content string) {
	b.agent.Remember(llm.Message{Role: role, Content: content})
}

func stageError(op string, err error) error {
	return fault.Fatal(fault.KindStage, op, err)
}

func requires(op, what string) error {
	return stageError(op, fmt.Errorf("%w: %s", ErrPrerequisite, what))
}
