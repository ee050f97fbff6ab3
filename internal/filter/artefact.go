// Package filter selects journal artefacts for inspection.
package filter

import (
	"path/filepath"

	"github.com/dyluth/warren/pkg/blackboard"
)

// Criteria are ANDed together. Zero values match everything.
type Criteria struct {
	RunID            string
	SinceTimestampMs int64
	UntilTimestampMs int64
	TypeGlob         string // e.g. "Build*"
	Role             string // exact produced_by_role
	Structural       blackboard.StructuralType
}

// Matches reports whether a passes every criterion.
func (c *Criteria) Matches(a *blackboard.Artefact) bool {
	if c == nil {
		return true
	}
	if c.RunID != "" && a.RunID != c.RunID {
		return false
	}
	if c.SinceTimestampMs > 0 && a.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && a.CreatedAtMs > c.UntilTimestampMs {
		return false
	}
	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, a.Type)
		if err != nil || !matched {
			return false
		}
	}
	if c.Role != "" && a.ProducedByRole != c.Role {
		return false
	}
	if c.Structural != "" && a.StructuralType != c.Structural {
		return false
	}
	return true
}

// Validate rejects a malformed type glob.
func (c *Criteria) Validate() error {
	if c == nil || c.TypeGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TypeGlob, "")
	return err
}

// HasFilters reports whether any criterion is set.
func (c *Criteria) HasFilters() bool {
	return c != nil && (c.RunID != "" ||
		c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.Role != "" ||
		c.Structural != "")
}
