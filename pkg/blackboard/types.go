package blackboard

import (
	"fmt"

	"github.com/google/uuid"
)

// Artefact is an immutable journal entry describing one stage output.
type Artefact struct {
	ID              string         `json:"id"`               // UUID of this artefact
	RunID           string         `json:"run_id"`           // UUID of the pipeline run that produced it
	LogicalID       string         `json:"logical_id"`       // UUID shared by all versions of the same output
	Version         int            `json:"version"`          // Starts at 1
	StructuralType  StructuralType `json:"structural_type"`  // Role in the run
	Type            string         `json:"type"`             // Domain type, e.g. "BackendCode"
	Payload         string         `json:"payload"`          // JSON or text
	SourceArtefacts []string       `json:"source_artefacts"` // Artefacts this was derived from
	ProducedByRole  string         `json:"produced_by_role"` // Agent position that produced it
	CreatedAtMs     int64          `json:"created_at_ms"`    // Unix milliseconds
}

// StructuralType defines the role an artefact plays in a run.
type StructuralType string

const (
	// StructuralTypeStandard is an ordinary stage output
	StructuralTypeStandard StructuralType = "Standard"

	// StructuralTypeFailure records a failed build, probe or stage
	StructuralTypeFailure StructuralType = "Failure"

	// StructuralTypeTerminal marks the end of a run
	StructuralTypeTerminal StructuralType = "Terminal"
)

// Artefact types written by the pipeline.
const (
	TypeGoalDefined     = "GoalDefined"
	TypeProjectScope    = "ProjectScope"
	TypeExternalURLs    = "ExternalURLs"
	TypeBackendCode     = "BackendCode"
	TypeEndpointSchema  = "EndpointSchema"
	TypeBuildFailure    = "BuildFailure"
	TypeProbeFailure    = "ProbeFailure"
	TypeProjectComplete = "ProjectComplete"
	TypePipelineFailed  = "PipelineFailed"
)

// Validate checks if the Artefact has valid field values.
func (a *Artefact) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid artefact ID: not a valid UUID")
	}

	if !isValidUUID(a.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if !isValidUUID(a.LogicalID) {
		return fmt.Errorf("invalid logical ID: not a valid UUID")
	}

	if a.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", a.Version)
	}

	if err := a.StructuralType.Validate(); err != nil {
		return fmt.Errorf("invalid structural type: %w", err)
	}

	if a.Type == "" {
		return fmt.Errorf("artefact type cannot be empty")
	}

	if a.ProducedByRole == "" {
		return fmt.Errorf("produced_by_role cannot be empty")
	}

	for i, sourceID := range a.SourceArtefacts {
		if !isValidUUID(sourceID) {
			return fmt.Errorf("invalid source artefact at index %d: not a valid UUID", i)
		}
	}

	return nil
}

// Validate checks if the StructuralType is a valid enum value.
func (st StructuralType) Validate() error {
	switch st {
	case StructuralTypeStandard, StructuralTypeFailure, StructuralTypeTerminal:
		return nil
	default:
		return fmt.Errorf("unknown structural type: %q", st)
	}
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
