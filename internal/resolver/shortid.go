// Package resolver expands short artefact and run ID prefixes to full UUIDs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/warren/pkg/blackboard"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ArtefactSource is the part of the blackboard client needed to resolve
// artefact IDs.
type ArtefactSource interface {
	GetArtefact(ctx context.Context, artefactID string) (*blackboard.Artefact, error)
	ScanArtefacts(ctx context.Context, fn func(artefactID string) error) error
}

// RunSource lists known run IDs.
type RunSource interface {
	ListRuns(ctx context.Context) ([]string, error)
}

// ResolveArtefactID resolves a short ID prefix to a full UUID. A full UUID is
// checked for existence and returned unchanged.
func ResolveArtefactID(ctx context.Context, src ArtefactSource, shortID string) (string, error) {
	if isFullUUID(shortID) {
		if _, err := src.GetArtefact(ctx, shortID); err != nil {
			if blackboard.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify artefact existence: %w", err)
		}
		return shortID, nil
	}
	if err := checkLength(shortID); err != nil {
		return "", err
	}

	var matches []string
	err := src.ScanArtefacts(ctx, func(id string) error {
		if strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search for artefact: %w", err)
	}
	return pick(shortID, "artefacts", matches)
}

// ResolveRunID resolves a run ID prefix against the run index.
func ResolveRunID(ctx context.Context, src RunSource, shortID string) (string, error) {
	runs, err := src.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if isFullUUID(shortID) {
		for _, run := range runs {
			if run == shortID {
				return run, nil
			}
		}
		return "", &NotFoundError{ShortID: shortID, What: "runs"}
	}
	if err := checkLength(shortID); err != nil {
		return "", err
	}

	var matches []string
	for _, run := range runs {
		if strings.HasPrefix(run, shortID) {
			matches = append(matches, run)
		}
	}
	return pick(shortID, "runs", matches)
}

func isFullUUID(id string) bool {
	return len(id) == 36 && strings.Count(id, "-") == 4
}

func checkLength(shortID string) error {
	if len(shortID) < MinShortIDLength {
		return fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}
	return nil
}

func pick(shortID, what string, matches []string) (string, error) {
	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID, What: what}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousError{ShortID: shortID, What: what, Matches: matches}
	}
}

// NotFoundError indicates nothing matched the short ID.
type NotFoundError struct {
	ShortID string
	What    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.what(), e.ShortID)
}

func (e *NotFoundError) what() string {
	if e.What == "" {
		return "artefacts"
	}
	return e.What
}

// AmbiguousError indicates more than one ID matched the short ID.
type AmbiguousError struct {
	ShortID string
	What    string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	what := e.What
	if what == "" {
		what = "artefacts"
	}
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %s", e.ShortID, len(e.Matches), what)
}

// FormatAmbiguousError lists up to ten of the matches for display.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s:\n", err.Error())

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify it.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
