package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/warren/pkg/blackboard"
)

// ArtefactNotFoundError is returned by GetArtefact for an unknown ID.
type ArtefactNotFoundError struct {
	ArtefactID string
}

func (e *ArtefactNotFoundError) Error() string {
	return fmt.Sprintf("artefact with ID '%s' not found", e.ArtefactID)
}

// IsNotFound reports whether err is an ArtefactNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ArtefactNotFoundError)
	return ok
}

// GetArtefact writes one artefact as indented JSON. With payloadOnly set
// only the raw payload is written, so generated code can be piped to a file.
func GetArtefact(ctx context.Context, src Source, artefactID string, payloadOnly bool, w io.Writer) error {
	artefact, err := src.GetArtefact(ctx, artefactID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return &ArtefactNotFoundError{ArtefactID: artefactID}
		}
		return fmt.Errorf("failed to fetch artefact: %w", err)
	}

	if payloadOnly {
		_, err := io.WriteString(w, artefact.Payload)
		if err == nil && artefact.Payload != "" && artefact.Payload[len(artefact.Payload)-1] != '\n' {
			_, err = io.WriteString(w, "\n")
		}
		return err
	}
	return FormatSingleJSON(w, artefact)
}
