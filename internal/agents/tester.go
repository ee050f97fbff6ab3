package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/build"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/probe"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/dyluth/warren/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	TesterObjective = "Builds and smoke tests the generated backend"
	TesterPosition  = "Backend Unit Tester"
)

// TesterOptions configures the unit tester.
type TesterOptions struct {
	// BackendPath is where repaired code is persisted.
	BackendPath string
	// RetryBudget is the number of repair attempts before failing.
	RetryBudget int
}

// UnitTester builds the generated code, smoke tests its GET routes and
// repairs it with the LLM until it passes or the budget runs out.
type UnitTester struct {
	base
	builder build.Builder
	checker probe.Checker
	store   workspace.Store
	opts    TesterOptions
	repairs int
}

// NewUnitTester creates the unit tester stage.
func NewUnitTester(env Env, builder build.Builder, checker probe.Checker, store workspace.Store, opts TesterOptions) *UnitTester {
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	}
	return &UnitTester{
		base:    newBase(env, TesterObjective, TesterPosition, "unit_tester"),
		builder: builder,
		checker: checker,
		store:   store,
		opts:    opts,
	}
}

func (u *UnitTester) Name() string { return "unit_tester" }

// Repairs returns the number of corrective LLM calls made so far.
func (u *UnitTester) Repairs() int { return u.repairs }

// failure is a recoverable build or smoke test failure.
type failure struct {
	kind       fault.Kind
	artefact   string
	diagnostic string
}

// Execute runs the build, start and probe cycle, repairing the code on
// failure.
func (u *UnitTester) Execute(ctx context.Context, record *blackboard.ProjectRecord) error {
	code, ok := record.BackendCode()
	if !ok {
		return requires("unit tester", "backend code")
	}
	schema, ok := record.EndpointSchema()
	if !ok {
		return requires("unit tester", "endpoint schema")
	}

	if err := u.transition(agent.StateUnitTesting); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		fail, err := u.check(ctx, schema)
		if err != nil {
			return err
		}
		if fail == nil {
			u.say("Backend code compiled and every GET route answered", printer.UnitTest)
			u.logger.Info("backend passed",
				zap.String("event_type", "backend_passed"),
				zap.Int("attempt", attempt),
				zap.Int("repairs", u.repairs))
			return u.transition(agent.StateFinished)
		}

		u.record(ctx, fail.artefact, fail.diagnostic, blackboard.StructuralTypeFailure)
		u.logger.Warn("backend check failed",
			zap.String("event_type", "backend_check_failed"),
			zap.String("kind", string(fail.kind)),
			zap.Int("attempt", attempt))

		if u.repairs >= u.opts.RetryBudget {
			u.say("Too many failed attempts, giving up", printer.Issue)
			return fault.Fatal(fail.kind, "unit tester",
				fmt.Errorf("still failing after %d repair attempts: %s", u.repairs, firstLine(fail.diagnostic)))
		}

		code, err = u.repair(ctx, record, code, fail)
		if err != nil {
			return err
		}
	}
}

// check builds, starts and probes the service. A nil failure and nil
// error mean the code passed.
func (u *UnitTester) check(ctx context.Context, schema blackboard.EndpointSchema) (*failure, error) {
	u.say("Backend Code Unit Testing: building project...", printer.UnitTest)
	res, err := u.builder.Build(ctx)
	if err != nil {
		return nil, stageError("unit tester: build", err)
	}
	if !res.Success {
		u.say("Error in code, sending it back for fixing", printer.Issue)
		return &failure{kind: fault.KindCompile, artefact: blackboard.TypeBuildFailure, diagnostic: res.Diagnostic}, nil
	}

	u.say("Backend Code Unit Testing: starting server...", printer.UnitTest)
	handle, err := u.builder.Start(ctx)
	if err != nil {
		if errors.Is(err, build.ErrExited) {
			u.say("Server exited during startup", printer.Issue)
			return &failure{kind: fault.KindRuntimeProbe, artefact: blackboard.TypeProbeFailure, diagnostic: err.Error()}, nil
		}
		return nil, stageError("unit tester: start", err)
	}
	defer func() {
		if err := handle.Stop(context.WithoutCancel(ctx)); err != nil {
			u.logger.Warn("failed to stop service", zap.String("event_type", "service_stop_failed"), zap.Error(err))
		}
	}()

	var problems []string
	for _, route := range schema.GETRoutes() {
		url := handle.BaseURL() + route.ProbePath()
		u.say("Testing endpoint "+route.Path, printer.UnitTest)
		status, err := u.checker.Status(ctx, url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, stageError("unit tester: probe", ctx.Err())
			}
			problems = append(problems, fmt.Sprintf("GET %s failed: %v", route.Path, err))
		case !probe.IsSuccess(status):
			problems = append(problems, fmt.Sprintf("GET %s returned status %d", route.Path, status))
		}
	}
	if len(problems) > 0 {
		u.say(fmt.Sprintf("%d endpoint(s) failed", len(problems)), printer.Issue)
		return &failure{
			kind:       fault.KindRuntimeProbe,
			artefact:   blackboard.TypeProbeFailure,
			diagnostic: strings.Join(problems, "\n"),
		}, nil
	}
	return nil, nil
}

// repair asks for corrected code using the agent's memory, persists it and
// revises the record.
func (u *UnitTester) repair(ctx context.Context, record *blackboard.ProjectRecord, code string, fail *failure) (string, error) {
	u.remember(llm.RoleUser, "CODE:\n"+code)
	u.remember(llm.RoleUser, "ERROR:\n"+fail.diagnostic)
	if err := u.transition(agent.StateWorking); err != nil {
		return "", err
	}

	u.repairs++
	reply, err := u.request(ctx, task.PrintFixedCode, "Fixing backend code",
		fmt.Sprintf("BROKEN CODE:\n%s\nERROR:\n%s", code, fail.diagnostic))
	if err != nil {
		return "", fault.Escalate("unit tester: fix code", err)
	}
	fixed := task.ExtractCode(reply)
	if strings.TrimSpace(fixed) == "" {
		return "", fault.Fatal(fault.KindDecode, task.PrintFixedCode.String(), fmt.Errorf("reply contained no code"))
	}
	u.remember(llm.RoleAssistant, fixed)

	if err := u.store.Write(u.opts.BackendPath, fixed); err != nil {
		return "", stageError("unit tester: save code", err)
	}
	if err := record.ReviseBackendCode(fixed); err != nil {
		return "", stageError("unit tester", err)
	}
	u.record(ctx, blackboard.TypeBackendCode, fixed, blackboard.StructuralTypeStandard)

	if err := u.transition(agent.StateUnitTesting); err != nil {
		return "", err
	}
	return fixed, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
