// Package orchestrator drives a project from the user's request through the
// architect, backend developer and unit tester stages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/agents"
	"github.com/dyluth/warren/internal/build"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/logging"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/probe"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ManagerObjective = "Manage agents who are building an excellent website for the user"
	ManagerPosition  = "Project Manager"
)

var (
	// ErrEmptyObjective is returned when the user's request is blank.
	ErrEmptyObjective = errors.New("project request is empty")

	// ErrAlreadyExecuted is returned by a second ExecuteProject call.
	ErrAlreadyExecuted = errors.New("project already executed")
)

// Deps are the collaborators a Manager hands to its stages. They are built
// once by the caller and shared for the life of the run.
type Deps struct {
	Decoder *task.Decoder
	Checker probe.Checker
	Builder build.Builder
	Store   workspace.Store
	Journal blackboard.Journal
	Console agents.Console
	Logger  *zap.Logger

	Paths       agents.Paths
	ImproveCode bool
	RetryBudget int

	// RunID identifies the run in logs and the journal. Generated when
	// empty.
	RunID string
}

func (d Deps) validate() error {
	var missing []string
	if d.Decoder == nil {
		missing = append(missing, "decoder")
	}
	if d.Checker == nil {
		missing = append(missing, "checker")
	}
	if d.Builder == nil {
		missing = append(missing, "builder")
	}
	if d.Store == nil {
		missing = append(missing, "store")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Report summarises a successful run.
type Report struct {
	RunID       string        `json:"run_id"`
	Description string        `json:"description"`
	BackendPath string        `json:"backend_path"`
	SchemaPath  string        `json:"schema_path"`
	Attempts    int           `json:"attempts"` // builds run, the first included
	Duration    time.Duration `json:"duration"`
}

// Manager owns the project record and runs the stages in order, one at a
// time.
type Manager struct {
	agent   *agent.Agent
	record  *blackboard.ProjectRecord
	stages  []agents.Stage
	tester  *agents.UnitTester
	deps    Deps
	journal blackboard.Journal
	logger  *zap.Logger
	started time.Time
}

// New turns userObjective into a one sentence project description with a
// single LLM call and prepares the pipeline.
func New(ctx context.Context, userObjective string, deps Deps) (*Manager, error) {
	userObjective = strings.TrimSpace(userObjective)
	if userObjective == "" {
		return nil, fault.Fatal(fault.KindStage, "new project", ErrEmptyObjective)
	}
	if err := deps.validate(); err != nil {
		return nil, fault.Fatal(fault.KindConfig, "new project", err)
	}
	if deps.RunID == "" {
		deps.RunID = uuid.New().String()
	}
	if deps.Journal == nil {
		deps.Journal = blackboard.NopJournal{}
	}
	if deps.Console == nil {
		deps.Console = printer.NewConsole(nil)
	}

	m := &Manager{
		agent:   agent.New(ManagerObjective, ManagerPosition),
		deps:    deps,
		journal: deps.Journal,
		logger:  logging.Component(deps.Logger, "orchestrator").With(zap.String("run_id", deps.RunID)),
		started: time.Now(),
	}

	reply, err := deps.Decoder.Request(ctx, task.Request{
		Context:   userObjective,
		Agent:     ManagerPosition,
		Operation: "Defining user requirements",
		Kind:      task.ConvertUserInputToGoal,
	})
	if err != nil {
		return nil, fault.Escalate("project goal", err)
	}
	description := strings.TrimSpace(task.ExtractCode(reply))
	if description == "" {
		return nil, fault.Fatal(fault.KindDecode, task.ConvertUserInputToGoal.String(), errors.New("reply was empty"))
	}

	m.record = blackboard.NewProjectRecord(description)
	m.recordEntry(ctx, blackboard.TypeGoalDefined, description, blackboard.StructuralTypeStandard)
	logging.Event(m.logger, "project_defined", zap.String("description", description))

	env := agents.Env{
		Decoder: deps.Decoder,
		Console: deps.Console,
		Journal: deps.Journal,
		Logger:  deps.Logger,
	}
	m.tester = agents.NewUnitTester(env, deps.Builder, deps.Checker, deps.Store, agents.TesterOptions{
		BackendPath: deps.Paths.BackendCode,
		RetryBudget: deps.RetryBudget,
	})
	m.stages = []agents.Stage{
		agents.NewArchitect(env, deps.Checker),
		agents.NewBackendDeveloper(env, deps.Store, agents.BackendOptions{
			Paths:   deps.Paths,
			Improve: deps.ImproveCode,
		}),
		m.tester,
	}

	return m, nil
}

// RunID returns the id of this run.
func (m *Manager) RunID() string { return m.deps.RunID }

// Record returns the project record. Stages write to it only while
// ExecuteProject runs them.
func (m *Manager) Record() *blackboard.ProjectRecord { return m.record }

// State returns the manager's lifecycle state.
func (m *Manager) State() agent.State { return m.agent.State() }

// Stages returns the pipeline in execution order.
func (m *Manager) Stages() []agents.Stage {
	return append([]agents.Stage{}, m.stages...)
}

// ExecuteProject runs every stage in order and stops at the first failure.
// Every returned error is fatal.
func (m *Manager) ExecuteProject(ctx context.Context) (*Report, error) {
	if m.agent.State() != agent.StateDiscovery {
		return nil, fault.Fatal(fault.KindStage, "execute project", ErrAlreadyExecuted)
	}
	if err := m.agent.Transition(agent.StateWorking); err != nil {
		return nil, fault.Fatal(fault.KindStage, "execute project", err)
	}

	for _, stage := range m.stages {
		start := time.Now()
		logging.Event(m.logger, "stage_started", zap.String("stage", stage.Name()))

		err := stage.Execute(ctx, m.record)
		if err == nil && stage.State() != agent.StateFinished {
			err = fault.Fatal(fault.KindStage, stage.Name(),
				fmt.Errorf("stage ended in state %s", stage.State()))
		}
		if err != nil {
			err = fault.Escalate(stage.Name(), err)
			m.fail(ctx, stage.Name(), err)
			return nil, err
		}

		logging.Event(m.logger, "stage_finished",
			zap.String("stage", stage.Name()),
			zap.Duration("duration", time.Since(start)))
	}

	if err := m.agent.Transition(agent.StateFinished); err != nil {
		return nil, fault.Fatal(fault.KindStage, "execute project", err)
	}

	report := &Report{
		RunID:       m.deps.RunID,
		Description: m.record.Description(),
		BackendPath: m.deps.Paths.BackendCode,
		SchemaPath:  m.deps.Paths.EndpointSchema,
		Attempts:    m.tester.Repairs() + 1,
		Duration:    time.Since(m.started),
	}
	m.recordEntry(ctx, blackboard.TypeProjectComplete, fmt.Sprintf("%s\nbackend: %s\nschema: %s",
		report.Description, report.BackendPath, report.SchemaPath), blackboard.StructuralTypeTerminal)
	logging.Event(m.logger, "project_complete",
		zap.Int("attempts", report.Attempts),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (m *Manager) fail(ctx context.Context, stage string, err error) {
	m.recordEntry(ctx, blackboard.TypePipelineFailed, err.Error(), blackboard.StructuralTypeFailure)
	m.logger.Error("pipeline failed",
		zap.String("event_type", "pipeline_failed"),
		zap.String("stage", stage),
		zap.String("kind", string(fault.KindOf(err))),
		zap.Error(err))
}

// recordEntry journals an artefact produced by the manager. Journal
// failures are logged and never stop the run.
func (m *Manager) recordEntry(ctx context.Context, typ, payload string, structural blackboard.StructuralType) {
	_, err := m.journal.Record(ctx, blackboard.Entry{
		Type:       typ,
		Role:       ManagerPosition,
		Payload:    payload,
		Structural: structural,
	})
	if err != nil {
		m.logger.Warn("failed to journal artefact",
			zap.String("event_type", "journal_failed"),
			zap.String("type", typ),
			zap.Error(err))
	}
}
