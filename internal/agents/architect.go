package agents

import (
	"context"
	"strings"

	"github.com/dyluth/warren/internal/agent"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/probe"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	ArchitectObjective = "Gathers information and design solutions for website development"
	ArchitectPosition  = "Solutions Architect"
)

var urlValidator = validator.New()

// Architect decides the project scope and, when the project depends on
// third-party data, which external URLs are reachable.
type Architect struct {
	base
	checker probe.Checker
}

// NewArchitect creates the architect stage. checker validates candidate
// URLs.
func NewArchitect(env Env, checker probe.Checker) *Architect {
	return &Architect{
		base:    newBase(env, ArchitectObjective, ArchitectPosition, "architect"),
		checker: checker,
	}
}

func (a *Architect) Name() string { return "architect" }

// Execute writes the project scope and, if required, the validated external
// URLs into record. Both are written only once the stage has succeeded.
func (a *Architect) Execute(ctx context.Context, record *blackboard.ProjectRecord) error {
	scope, err := decode[blackboard.ProjectScope](ctx, &a.base, task.PrintProjectScope,
		"Defining initial project scope", record.Description())
	if err != nil {
		return fault.Escalate("architect: project scope", err)
	}
	a.remember(llm.RoleAssistant, mustJSON(scope))

	var urls []string
	if scope.IsExternalURLsRequired {
		urls, err = a.externalURLs(ctx, record.Description())
		if err != nil {
			return err
		}
	}

	if err := record.SetScope(scope); err != nil {
		return stageError("architect", err)
	}
	a.recordJSON(ctx, blackboard.TypeProjectScope, scope)

	if scope.IsExternalURLsRequired {
		if err := record.SetExternalURLs(urls); err != nil {
			return stageError("architect", err)
		}
		a.recordJSON(ctx, blackboard.TypeExternalURLs, urls)
	}

	return a.transition(agent.StateFinished)
}

func (a *Architect) externalURLs(ctx context.Context, description string) ([]string, error) {
	proposed, err := decode[[]string](ctx, &a.base, task.PrintSiteURLs,
		"Determining external URLs to use", description)
	if err != nil {
		return nil, fault.Escalate("architect: external urls", err)
	}

	candidates := make([]string, 0, len(proposed))
	for _, u := range proposed {
		u = strings.TrimSpace(u)
		if err := urlValidator.Var(u, "required,http_url"); err != nil {
			a.logger.Warn("discarding malformed url",
				zap.String("event_type", "url_rejected"),
				zap.String("url", u))
			continue
		}
		candidates = append(candidates, u)
	}

	a.say("Checking external URLs", printer.UnitTest)
	urls := probe.ValidateURLs(ctx, a.checker, candidates, a.logger)
	if err := ctx.Err(); err != nil {
		return nil, stageError("architect: external urls", err)
	}

	a.logger.Info("external urls validated",
		zap.String("event_type", "urls_validated"),
		zap.Int("proposed", len(proposed)),
		zap.Int("retained", len(urls)))
	return urls, nil
}
