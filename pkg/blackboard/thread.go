package blackboard

// Threads group the versions of one logical artefact. They are ZSETs whose
// members are artefact IDs scored by version.

// ThreadVersion represents a single version in a thread.
type ThreadVersion struct {
	ArtefactID string
	Version    int
}

// ThreadScore converts an artefact version number to a ZSET score.
func ThreadScore(version int) float64 {
	return float64(version)
}

// VersionFromScore converts a ZSET score back to an artefact version number.
func VersionFromScore(score float64) int {
	return int(score)
}
