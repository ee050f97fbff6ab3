package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/git"
	"github.com/dyluth/warren/internal/logging"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Prompt is asked on stdin when warren runs without a subcommand.
const Prompt = "What website do you want to build?"

var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - LLM agents that build a backend web service for you",
	Long: `Warren asks what website you want, then runs a fixed team of LLM agents:

  Solutions Architect   scopes the project and checks external APIs
  Backend Developer     writes the service from the starter template
  Backend Unit Tester   builds it, smoke tests its GET routes and repairs
                        compile or runtime failures within a retry budget

Configuration is read from warren.yml (see 'warren init'). The OPEN_AI_KEY
and OPEN_AI_ORG environment variables are required.`,
	Args: cobra.NoArgs,
	RunE: runProject,
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	// Errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	// SIGINT/SIGTERM cancel the running command, stopping any build or
	// service it started.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func runProject(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return printer.Error(
			"missing credentials",
			err.Error(),
			[]string{fmt.Sprintf("Export your OpenAI credentials:\n  export %s=sk-...\n  export %s=org-...",
				config.APIKeyEnv, config.OrgIDEnv)},
		)
	}

	if err := requireTemplate(cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return printer.Error("invalid logging configuration", err.Error(), nil)
	}
	defer logger.Close()

	objective, err := readObjective(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.Timeout)
		defer cancel()
	}

	warnDirtyOutputs(cfg, logger.Logger)

	p, err := assemble(ctx, cfg, creds, cmd.OutOrStdout(), logger.Logger)
	if err != nil {
		return printer.Error("failed to start pipeline", err.Error(), nil)
	}
	defer p.Close()

	manager, err := orchestrator.New(ctx, objective, p.Deps)
	if err != nil {
		return pipelineError(err)
	}
	report, err := manager.ExecuteProject(ctx)
	if err != nil {
		return pipelineError(err)
	}

	printer.Success("Project complete in %s (%d build %s)\n", report.Duration.Round(time.Millisecond), report.Attempts,
		plural(report.Attempts, "attempt"))
	printer.Info("  backend: %s\n  schema:  %s\n  run:     %s\n", report.BackendPath, report.SchemaPath, report.RunID)
	return nil
}

func loadConfig() (*config.Config, error) {
	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"File": path},
			[]string{"Regenerate a default configuration:\n  warren init --force"},
		)
	}
	return cfg, nil
}

// requireTemplate fails before the prompt when the starter template the
// Backend Developer extends is missing.
func requireTemplate(cfg *config.Config) error {
	ok, err := workspace.NewOS(".").Exists(cfg.Paths.Template)
	if err != nil {
		return printer.Error("failed to check starter template", err.Error(), nil)
	}
	if !ok {
		return printer.ErrorWithContext(
			"starter template not found",
			"The Backend Developer extends the starter template, which does not exist.",
			map[string]string{"Template": cfg.Paths.Template},
			[]string{"Create the default template:\n  warren init"},
		)
	}
	return nil
}

// readObjective asks Prompt and returns the first non-empty answer line.
func readObjective(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprintln(out, Prompt)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", printer.Error("failed to read project request", err.Error(), nil)
	}
	return "", printer.Error(
		"no project request",
		"Input ended before a website was described.",
		[]string{"Describe the website on stdin:\n  echo 'Build a TODO list API' | warren"},
	)
}

// warnDirtyOutputs warns when files the run overwrites have uncommitted
// changes.
func warnDirtyOutputs(cfg *config.Config, logger *zap.Logger) {
	checker := git.NewChecker("")
	if ok, err := checker.IsGitRepository(); err != nil || !ok {
		return
	}
	files, err := checker.DirtyFiles(cfg.Paths.BackendCode, cfg.Paths.EndpointSchema)
	if err != nil {
		logger.Debug("git status failed", zap.Error(err))
		return
	}
	var modified []git.FileStatus
	for _, f := range files {
		if !f.Untracked {
			modified = append(modified, f)
		}
	}
	if len(modified) > 0 {
		printer.Warning("This run overwrites files with uncommitted changes:\n%s\n\n", git.FormatDirtyFiles(modified))
	}
}

func pipelineError(err error) error {
	kind := fault.KindOf(err)
	details := map[string]string{"Kind": string(kind)}

	var suggestions []string
	switch kind {
	case fault.KindTransientGateway:
		suggestions = []string{"Check OPEN_AI_KEY / OPEN_AI_ORG and the API status", "Raise gateway.max_attempts in warren.yml"}
	case fault.KindDecode:
		suggestions = []string{"Retry the run; the model reply could not be decoded", "Try a different model.name in warren.yml"}
	case fault.KindCompile:
		suggestions = []string{"Inspect the last build failure:\n  warren hoard --type BuildFailure", "Raise pipeline.retry_budget in warren.yml"}
	case fault.KindRuntimeProbe:
		suggestions = []string{"Inspect the last probe failure:\n  warren hoard --type ProbeFailure", "Raise build.startup_wait in warren.yml"}
	case fault.KindConfig:
		suggestions = []string{"Check warren.yml and the credentials environment"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		suggestions = append(suggestions, "Raise pipeline.timeout in warren.yml")
	}

	return printer.ErrorWithContext("pipeline failed", err.Error(), details, suggestions)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
