package blackboard

import "fmt"

// Key pattern: warren:{instance_name}:{entity}:{id}
// Channel pattern: warren:{instance_name}:{event_type}_events

// ArtefactKey returns the Redis key for an artefact.
func ArtefactKey(instanceName, artefactID string) string {
	return fmt.Sprintf("warren:%s:artefact:%s", instanceName, artefactID)
}

// ArtefactKeyPattern matches every artefact key of an instance, for SCAN.
func ArtefactKeyPattern(instanceName string) string {
	return fmt.Sprintf("warren:%s:artefact:*", instanceName)
}

// ThreadKey returns the Redis key for a version thread ZSET.
func ThreadKey(instanceName, logicalID string) string {
	return fmt.Sprintf("warren:%s:thread:%s", instanceName, logicalID)
}

// RunKey returns the Redis key for the ZSET of artefacts produced by a run.
func RunKey(instanceName, runID string) string {
	return fmt.Sprintf("warren:%s:run:%s", instanceName, runID)
}

// RunsKey returns the Redis key for the ZSET of all run IDs.
func RunsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:runs", instanceName)
}

// ArtefactEventsChannel returns the Pub/Sub channel for artefact events.
func ArtefactEventsChannel(instanceName string) string {
	return fmt.Sprintf("warren:%s:artefact_events", instanceName)
}
