package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/dyluth/warren/internal/agents"
	"github.com/dyluth/warren/internal/build"
	"github.com/dyluth/warren/internal/config"
	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/llm"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/probe"
	"github.com/dyluth/warren/internal/task"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/dyluth/warren/pkg/blackboard"
	"go.uber.org/zap"
)

// pipeline holds the collaborators of one run and what must be released
// afterwards.
type pipeline struct {
	Deps    orchestrator.Deps
	closers []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// assemble builds every collaborator once from cfg.
func assemble(ctx context.Context, cfg *config.Config, creds config.Credentials, out io.Writer, logger *zap.Logger) (*pipeline, error) {
	return assembleWith(ctx, cfg, llm.NewOpenAIClient(creds.APIKey, creds.OrgID, cfg.Gateway.BaseURL), out, logger)
}

func assembleWith(ctx context.Context, cfg *config.Config, chat llm.ChatClient, out io.Writer, logger *zap.Logger) (*pipeline, error) {
	p := &pipeline{}
	runID := dockerpkg.GenerateRunID()

	gateway, err := llm.NewGateway(chat, llm.Config{
		Model:       cfg.Model.Name,
		Temperature: cfg.Temperature(),
		Retry:       llm.RetryPolicy{MaxAttempts: cfg.Gateway.MaxAttempts, Backoff: cfg.Gateway.Backoff},
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	console := printer.NewConsole(out)
	decoder := task.NewDecoder(gateway, task.Options{
		Observer: console,
		Logger:   logger,
		Reprompt: cfg.DecodeReprompt(),
	})

	builder, err := newBuilder(ctx, cfg, runID, logger, p)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Deps = orchestrator.Deps{
		Decoder: decoder,
		Checker: probe.NewHTTPChecker(&http.Client{}, cfg.Probe.Timeout),
		Builder: builder,
		Store:   workspace.NewOS("."),
		Journal: openJournal(ctx, cfg, runID, logger, p),
		Console: console,
		Logger:  logger,
		Paths: agents.Paths{
			Template:       cfg.Paths.Template,
			BackendCode:    cfg.Paths.BackendCode,
			EndpointSchema: cfg.Paths.EndpointSchema,
		},
		ImproveCode: cfg.ImproveCode(),
		RetryBudget: cfg.RetryBudget(),
		RunID:       runID,
	}
	return p, nil
}

func newBuilder(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger, p *pipeline) (build.Builder, error) {
	opts := build.Options{
		Dir:         cfg.Build.Dir,
		Command:     cfg.Build.Command,
		RunCommand:  cfg.Build.RunCommand,
		Port:        cfg.Build.Port,
		StartupWait: cfg.Build.StartupWait,
		Timeout:     cfg.Build.Timeout,
	}

	switch cfg.Build.Driver {
	case config.DriverDocker:
		// Bind mounts need an absolute host path.
		dir, err := filepath.Abs(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve build.dir: %w", err)
		}
		opts.Dir = dir

		cli, err := dockerpkg.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, cli.Close)
		return build.NewDockerBuilder(cli, build.DockerOptions{Options: opts, Image: cfg.Build.Image, RunID: runID}, logger)
	default:
		return build.NewProcessBuilder(opts, logger)
	}
}

// openJournal connects to the configured Redis. The journal is optional: an
// empty redis_url or an unreachable server records nothing.
func openJournal(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger, p *pipeline) blackboard.Journal {
	if cfg.Journal.RedisURL == "" {
		return blackboard.NopJournal{}
	}

	client, err := blackboard.NewClientFromURL(cfg.Journal.RedisURL, cfg.Journal.Instance)
	if err == nil {
		err = client.Ping(ctx)
		if err != nil {
			client.Close()
		}
	}
	if err != nil {
		printer.Warning("Journal disabled: %v\n", err)
		logger.Warn("journal unavailable",
			zap.String("event_type", "journal_unavailable"),
			zap.Error(err))
		return blackboard.NopJournal{}
	}
	p.closers = append(p.closers, client.Close)

	recorder, err := blackboard.NewRecorder(client, runID)
	if err != nil {
		return blackboard.NopJournal{}
	}
	return recorder
}
