// Package hoard reads the run journal for the inspection commands.
package hoard

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/pkg/blackboard"
)

// OutputFormat specifies how to format list output.
type OutputFormat string

const (
	// OutputFormatDefault is a table with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL writes complete artefacts as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat accepts "", "default" and "jsonl".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("invalid output format %q (expected default or jsonl)", s)
	}
}

// Source is the part of the blackboard client the journal readers use.
type Source interface {
	ListRuns(ctx context.Context) ([]string, error)
	ListRunArtefacts(ctx context.Context, runID string) ([]*blackboard.Artefact, error)
	GetArtefact(ctx context.Context, artefactID string) (*blackboard.Artefact, error)
}

// Collect returns every artefact matching criteria, ordered by creation
// time. With criteria.RunID set only that run is read.
func Collect(ctx context.Context, src Source, criteria *filter.Criteria) ([]*blackboard.Artefact, error) {
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid type pattern: %w", err)
	}

	var runs []string
	if criteria != nil && criteria.RunID != "" {
		runs = []string{criteria.RunID}
	} else {
		var err error
		if runs, err = src.ListRuns(ctx); err != nil {
			return nil, err
		}
	}

	var artefacts []*blackboard.Artefact
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := src.ListRunArtefacts(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("failed to read run %s: %w", run, err)
		}
		for _, a := range list {
			if criteria.Matches(a) {
				artefacts = append(artefacts, a)
			}
		}
	}

	sort.SliceStable(artefacts, func(i, j int) bool {
		return artefacts[i].CreatedAtMs < artefacts[j].CreatedAtMs
	})
	return artefacts, nil
}

// ListArtefacts writes the matching artefacts to w in the requested format.
func ListArtefacts(ctx context.Context, src Source, instanceName string, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	artefacts, err := Collect(ctx, src, criteria)
	if err != nil {
		return err
	}

	switch format {
	case OutputFormatJSONL:
		return FormatJSONL(w, artefacts)
	default:
		FormatTable(w, artefacts, instanceName)
		return nil
	}
}

// RunSummary describes one run of the pipeline.
type RunSummary struct {
	RunID       string `json:"run_id"`
	Goal        string `json:"goal"`
	Outcome     string `json:"outcome"`
	Artefacts   int    `json:"artefacts"`
	Failures    int    `json:"failures"`
	StartedAtMs int64  `json:"started_at_ms"`
}

// Run outcomes.
const (
	OutcomeComplete   = "complete"
	OutcomeFailed     = "failed"
	OutcomeInProgress = "in progress"
)

// Summarise folds the artefacts of one run into a summary.
func Summarise(runID string, artefacts []*blackboard.Artefact) RunSummary {
	s := RunSummary{RunID: runID, Outcome: OutcomeInProgress, Artefacts: len(artefacts)}
	for _, a := range artefacts {
		if s.StartedAtMs == 0 || a.CreatedAtMs < s.StartedAtMs {
			s.StartedAtMs = a.CreatedAtMs
		}
		switch a.Type {
		case blackboard.TypeGoalDefined:
			s.Goal = a.Payload
		case blackboard.TypeProjectComplete:
			s.Outcome = OutcomeComplete
		case blackboard.TypePipelineFailed:
			s.Outcome = OutcomeFailed
		}
		if a.StructuralType == blackboard.StructuralTypeFailure && a.Type != blackboard.TypePipelineFailed {
			s.Failures++
		}
	}
	return s
}

// ListRuns summarises every journaled run, oldest first.
func ListRuns(ctx context.Context, src Source) ([]RunSummary, error) {
	runs, err := src.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		artefacts, err := src.ListRunArtefacts(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("failed to read run %s: %w", run, err)
		}
		summaries = append(summaries, Summarise(run, artefacts))
	}
	return summaries, nil
}
