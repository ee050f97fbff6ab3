package docker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Label keys used for warren containers
const (
	LabelProject   = "warren.project"
	LabelRunID     = "warren.run_id"
	LabelWorkspace = "warren.workspace.path"
	LabelComponent = "warren.component"
)

// Component values for LabelComponent
const (
	ComponentBuild   = "build"
	ComponentService = "service"
)

// BuildLabels creates the label set for a container started by a pipeline
// run. component may be empty.
func BuildLabels(runID, workspacePath, component string) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelRunID:     runID,
		LabelWorkspace: workspacePath,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for a pipeline run.
func GenerateRunID() string {
	return uuid.New().String()
}

// ContainerName returns the container name for a run's component. Only the
// first segment of the run ID is used to keep names short.
func ContainerName(runID, component string) string {
	short, _, _ := strings.Cut(runID, "-")
	return fmt.Sprintf("warren-%s-%s", component, short)
}
