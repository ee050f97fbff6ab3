// Package blackboard holds the state a pipeline run accumulates.
//
// # Project Record
//
// ProjectRecord is the in-memory blackboard handed from stage to stage. Each
// optional field is written once by the stage responsible for it; a second
// write returns ErrAlreadySet. Only one stage holds the record at a time, so
// it carries no locking.
//
// # Artefact Journal
//
// Every stage output is also recorded as an immutable Artefact in Redis so a
// run can be inspected after the fact (warren hoard) or followed live
// (warren watch). Successive outputs of the same type within a run form a
// version thread: the repaired backend code of each repair attempt is a new
// version of the same logical artefact.
//
// # Redis Schema
//
// All keys and channels are namespaced by instance name so several
// workspaces can share one Redis server.
//
//	Artefacts:       warren:{instance}:artefact:{artefact_id}   (hash)
//	Threads:         warren:{instance}:thread:{logical_id}      (zset, score = version)
//	Run index:       warren:{instance}:run:{run_id}             (zset, score = created_at_ms)
//	Runs:            warren:{instance}:runs                     (zset, score = first artefact time)
//	Artefact events: warren:{instance}:artefact_events          (pub/sub)
package blackboard
