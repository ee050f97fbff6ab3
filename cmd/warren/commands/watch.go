package commands

import (
	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchType         string
	watchAgent        string
	watchExit         bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream journal events live",
	Long: `Stream artefacts as running pipelines record them.

Run 'warren' in one terminal and 'warren watch' in another to follow the
agents' outputs, build failures and repairs as they happen.

Examples:
  # Follow everything
  warren watch

  # Only failures, as JSON, stop when the run ends
  warren watch --type '*Fail*' -o jsonl --exit-on-completion`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Filter by artefact type (glob pattern)")
	watchCmd.Flags().StringVar(&watchAgent, "agent", "", "Filter by producing agent position (exact match)")
	watchCmd.Flags().BoolVar(&watchExit, "exit-on-completion", false, "Exit when a run completes or fails")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	opts := watch.Options{
		Format:           watch.OutputFormat(watchOutputFormat),
		Criteria:         &filter.Criteria{TypeGlob: watchType, Role: watchAgent},
		ExitOnCompletion: watchExit,
	}
	if err := opts.Criteria.Validate(); err != nil {
		return printer.Error("invalid type pattern", err.Error(), nil)
	}

	client, _, err := connectJournal(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.Format != watch.OutputFormatJSONL {
		printer.Info("Watching journal '%s' (Ctrl+C to stop)...\n", client.InstanceName())
	}
	return watch.Stream(cmd.Context(), client, opts, cmd.OutOrStdout())
}
