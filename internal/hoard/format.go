package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/blackboard"
)

const tableRow = "%-10s %-10s %-5s %-10s %-20s %-8s %s\n"

// FormatTable writes artefacts as a table and returns how many it wrote.
func FormatTable(w io.Writer, artefacts []*blackboard.Artefact, instanceName string) int {
	if len(artefacts) == 0 {
		fmt.Fprintf(w, "No artefacts found for instance '%s'\n", instanceName)
		return 0
	}

	now := time.Now()
	fmt.Fprintf(w, "Artefacts for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, tableRow, "ID", "RUN", "VER", "TYPE", "BY", "AGE", "PAYLOAD")
	fmt.Fprintf(w, tableRow, strings.Repeat("-", 10), strings.Repeat("-", 10), strings.Repeat("-", 5),
		strings.Repeat("-", 10), strings.Repeat("-", 20), strings.Repeat("-", 8), strings.Repeat("-", 40))

	for _, a := range artefacts {
		fmt.Fprintf(w, tableRow,
			shortID(a.ID),
			shortID(a.RunID),
			formatVersion(a.Version),
			formatType(a.Type),
			orDash(a.ProducedByRole),
			formatAge(a.CreatedAtMs, now),
			formatPayload(a.Payload),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(artefacts), plural(len(artefacts), "artefact"))
	return len(artefacts)
}

// FormatRuns writes run summaries as a table.
func FormatRuns(w io.Writer, runs []RunSummary, instanceName string) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for instance '%s'\n", instanceName)
		return
	}

	now := time.Now()
	fmt.Fprintf(w, "Runs for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-10s %-12s %-9s %-9s %-8s %s\n", "RUN", "OUTCOME", "ARTEFACTS", "FAILURES", "AGE", "GOAL")
	for _, r := range runs {
		fmt.Fprintf(w, "%-10s %-12s %-9d %-9d %-8s %s\n",
			shortID(r.RunID), r.Outcome, r.Artefacts, r.Failures,
			formatAge(r.StartedAtMs, now), formatPayload(r.Goal))
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(runs), plural(len(runs), "run"))
}

// FormatJSONL writes one compact JSON object per line, for jq.
func FormatJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one artefact as indented JSON.
func FormatSingleJSON(w io.Writer, artefact *blackboard.Artefact) error {
	data, err := json.MarshalIndent(artefact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artefact to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}

// formatType shortens the longer pipeline types to fit the column.
func formatType(typeName string) string {
	switch typeName {
	case blackboard.TypeGoalDefined:
		return "Goal"
	case blackboard.TypeProjectScope:
		return "Scope"
	case blackboard.TypeExternalURLs:
		return "URLs"
	case blackboard.TypeBackendCode:
		return "Code"
	case blackboard.TypeEndpointSchema:
		return "Schema"
	case blackboard.TypeBuildFailure:
		return "BuildFail"
	case blackboard.TypeProbeFailure:
		return "ProbeFail"
	case blackboard.TypeProjectComplete:
		return "Complete"
	case blackboard.TypePipelineFailed:
		return "Failed"
	}
	if len(typeName) > 10 {
		return typeName[:7] + "..."
	}
	return typeName
}

// formatPayload returns the first non-empty line, cut to 40 characters.
func formatPayload(payload string) string {
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 40 {
			return line[:37] + "..."
		}
		return line
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatVersion shows "-" for the first version of a thread.
func formatVersion(version int) string {
	if version <= 1 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

func formatAge(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", max(0, int(diff.Seconds())))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
