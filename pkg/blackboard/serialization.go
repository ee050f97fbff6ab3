package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Redis hashes are string-to-string maps, so array fields are stored
// JSON-encoded in a single hash field.

// ArtefactToHash converts an Artefact to a Redis hash.
func ArtefactToHash(a *Artefact) (map[string]interface{}, error) {
	sources := a.SourceArtefacts
	if sources == nil {
		sources = []string{}
	}
	sourceArtefactsJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal source artefacts: %w", err)
	}

	return map[string]interface{}{
		"id":               a.ID,
		"run_id":           a.RunID,
		"logical_id":       a.LogicalID,
		"version":          a.Version,
		"structural_type":  string(a.StructuralType),
		"type":             a.Type,
		"payload":          a.Payload,
		"source_artefacts": string(sourceArtefactsJSON),
		"produced_by_role": a.ProducedByRole,
		"created_at_ms":    a.CreatedAtMs,
	}, nil
}

// HashToArtefact converts a Redis hash back to an Artefact.
func HashToArtefact(hash map[string]string) (*Artefact, error) {
	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	var sourceArtefacts []string
	if raw := hash["source_artefacts"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &sourceArtefacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source_artefacts: %w", err)
		}
	}
	if sourceArtefacts == nil {
		sourceArtefacts = []string{}
	}

	var createdAtMs int64
	if raw := hash["created_at_ms"]; raw != "" {
		createdAtMs, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
		}
	}

	return &Artefact{
		ID:              hash["id"],
		RunID:           hash["run_id"],
		LogicalID:       hash["logical_id"],
		Version:         version,
		StructuralType:  StructuralType(hash["structural_type"]),
		Type:            hash["type"],
		Payload:         hash["payload"],
		SourceArtefacts: sourceArtefacts,
		ProducedByRole:  hash["produced_by_role"],
		CreatedAtMs:     createdAtMs,
	}, nil
}
