package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/hoard"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/resolver"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	hoardOutputFormat string
	hoardRun          string
	hoardSince        string
	hoardUntil        string
	hoardType         string
	hoardAgent        string
	hoardFailures     bool
	hoardRuns         bool
	hoardPayload      bool
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [ARTEFACT_ID]",
	Short: "Inspect the run journal",
	Long: `Inspect journaled artefacts in list, runs or get mode.

List Mode (no ARTEFACT_ID):
  Displays artefacts matching filters as a table or JSONL stream.

Runs Mode (--runs):
  Summarises every recorded run with its goal and outcome.

Get Mode (with ARTEFACT_ID):
  Displays one artefact as pretty-printed JSON, or only its payload with
  --payload. Supports short IDs (e.g. "abc123" instead of the full UUID).

Examples:
  # Everything from one run (short run IDs work)
  warren hoard --run 1f2e3d

  # Every compile error the Unit Tester hit in the last hour
  warren hoard --type BuildFailure --since 1h

  # Save the first generated code version
  warren hoard abc123 --payload > main.rs

  # Pipe to jq
  warren hoard -o jsonl | jq 'select(.structural_type=="Terminal") | .run_id'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().StringVarP(&hoardOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	hoardCmd.Flags().StringVar(&hoardRun, "run", "", "Only artefacts of this run (short ID accepted)")
	hoardCmd.Flags().StringVar(&hoardSince, "since", "", "Show artefacts after time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardUntil, "until", "", "Show artefacts before time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardType, "type", "", "Filter by artefact type (glob pattern)")
	hoardCmd.Flags().StringVar(&hoardAgent, "agent", "", "Filter by producing agent position (exact match)")
	hoardCmd.Flags().BoolVar(&hoardFailures, "failures", false, "Only build, probe and pipeline failures")
	hoardCmd.Flags().BoolVar(&hoardRuns, "runs", false, "Summarise runs instead of listing artefacts")
	hoardCmd.Flags().BoolVar(&hoardPayload, "payload", false, "Get mode: print only the payload")
	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	format, err := hoard.ParseOutputFormat(hoardOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	client, cfg, err := connectJournal(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) > 0 {
		id, err := resolver.ResolveArtefactID(ctx, client, args[0])
		if err != nil {
			return resolveError(err, "artefact")
		}
		return hoard.GetArtefact(ctx, client, id, hoardPayload, out)
	}

	if hoardRuns {
		runs, err := hoard.ListRuns(ctx, client)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if format == hoard.OutputFormatJSONL {
			return hoard.FormatJSONL(out, runs)
		}
		hoard.FormatRuns(out, runs, cfg.Journal.Instance)
		return nil
	}

	criteria, err := hoardCriteria(cmd, client)
	if err != nil {
		return err
	}
	return hoard.ListArtefacts(ctx, client, cfg.Journal.Instance, format, criteria, out)
}

func hoardCriteria(cmd *cobra.Command, client *blackboard.Client) (*filter.Criteria, error) {
	since, until, err := timespec.ParseRange(hoardSince, hoardUntil)
	if err != nil {
		return nil, printer.Error("invalid time filter", err.Error(),
			[]string{"Use a duration like '1h30m' or an RFC3339 time like '2025-10-29T13:00:00Z'"})
	}

	criteria := &filter.Criteria{
		SinceTimestampMs: since,
		UntilTimestampMs: until,
		TypeGlob:         hoardType,
		Role:             hoardAgent,
	}
	if hoardFailures {
		criteria.Structural = blackboard.StructuralTypeFailure
	}
	if err := criteria.Validate(); err != nil {
		return nil, printer.Error("invalid type pattern", err.Error(), nil)
	}

	if hoardRun != "" {
		runID, err := resolver.ResolveRunID(cmd.Context(), client, hoardRun)
		if err != nil {
			return nil, resolveError(err, "run")
		}
		criteria.RunID = runID
	}
	return criteria, nil
}

func resolveError(err error, what string) error {
	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		return printer.Error("ambiguous "+what+" ID", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	if resolver.IsNotFoundError(err) {
		return printer.Error(what+" not found", err.Error(),
			[]string{"List what the journal holds:\n  warren hoard --runs"})
	}
	return err
}
