package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/dyluth/warren/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	BackendObjective = "Develops backend code for webserver and json database"
	BackendPosition  = "Backend Developer"
)

// Paths locate the starter template and the generated artifacts.
type Paths struct {
	Template       string
	BackendCode    string
	EndpointSchema string
}

// BackendOptions configures the backend developer.
type BackendOptions struct {
	Paths Paths
	// Improve runs a second pass refining the code against the scope and
	// external URLs.
	Improve bool
}

// BackendDeveloper writes the backend source and describes its routes.
type BackendDeveloper struct {
	base
	store workspace.Store
	opts  BackendOptions
}

// NewBackendDeveloper creates the backend developer stage.
func NewBackendDeveloper(env Env, store workspace.Store, opts BackendOptions) *BackendDeveloper {
	return &BackendDeveloper{
		base:  newBase(env, BackendObjective, BackendPosition, "backend_developer"),
		store: store,
		opts:  opts,
	}
}

func (b *BackendDeveloper) Name() string { return "backend_developer" }

// Execute generates and persists the backend source and endpoint schema,
// then writes both into record.
func (b *BackendDeveloper) Execute(ctx context.Context, record *blackboard.ProjectRecord) error {
	scope, ok := record.Scope()
	if !ok {
		return requires("backend developer", "project scope")
	}
	if err := b.transition(agent.StateWorking); err != nil {
		return err
	}

	template, err := b.store.Read(b.opts.Paths.Template)
	if err != nil {
		return stageError("backend developer: read template", err)
	}

	code, err := b.generate(ctx, task.PrintBackendCode, "Writing backend code",
		fmt.Sprintf("PROJECT DESCRIPTION: %s\nCODE TEMPLATE:\n%s", record.Description(), template))
	if err != nil {
		return err
	}

	if b.opts.Improve {
		urls, _ := record.ExternalURLs()
		code, err = b.generate(ctx, task.PrintImprovedBackendCode, "Improving backend code",
			fmt.Sprintf("PROJECT DESCRIPTION: %s\nPROJECT SCOPE: %s\nEXTERNAL URLS: %s\nBACKEND CODE:\n%s",
				record.Description(), mustJSON(scope), strings.Join(urls, ", "), code))
		if err != nil {
			return err
		}
	}

	if err := b.store.Write(b.opts.Paths.BackendCode, code); err != nil {
		return stageError("backend developer: save code", err)
	}
	b.logger.Info("backend code saved",
		zap.String("event_type", "backend_code_saved"),
		zap.String("path", b.opts.Paths.BackendCode),
		zap.Int("bytes", len(code)))

	schema, err := decode[blackboard.EndpointSchema](ctx, &b.base, task.PrintRestAPIEndpoints,
		"Collecting API endpoints", code)
	if err != nil {
		return fault.Escalate("backend developer: endpoint schema", err)
	}
	if err := workspace.WriteJSON(b.store, b.opts.Paths.EndpointSchema, schema); err != nil {
		return stageError("backend developer: save endpoint schema", err)
	}

	if err := record.SetBackendCode(code); err != nil {
		return stageError("backend developer", err)
	}
	if err := record.SetEndpointSchema(schema); err != nil {
		return stageError("backend developer", err)
	}
	b.record(ctx, blackboard.TypeBackendCode, code, blackboard.StructuralTypeStandard)
	b.recordJSON(ctx, blackboard.TypeEndpointSchema, schema)

	b.say(fmt.Sprintf("Backend code saved with %d routes", len(schema)), printer.AICall)
	return b.transition(agent.StateFinished)
}

// generate requests source code and remembers it.
func (b *BackendDeveloper) generate(ctx context.Context, kind task.Kind, operation, input string) (string, error) {
	reply, err := b.request(ctx, kind, operation, input)
	if err != nil {
		return "", fault.Escalate("backend developer: "+kind.String(), err)
	}
	code := task.ExtractCode(reply)
	if strings.TrimSpace(code) == "" {
		return "", fault.Fatal(fault.KindDecode, kind.String(), fmt.Errorf("reply contained no code"))
	}
	b.remember(llm.RoleAssistant, code)
	return code, nil
}
