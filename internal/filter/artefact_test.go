package filter

import (
	"testing"

	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/stretchr/testify/assert"
)

func TestCriteriaMatches(t *testing.T) {
	art := &blackboard.Artefact{
		RunID:          "run-1",
		Type:           blackboard.TypeBuildFailure,
		ProducedByRole: "Backend Unit Tester",
		StructuralType: blackboard.StructuralTypeFailure,
		CreatedAtMs:    1000,
	}

	tests := []struct {
		name     string
		criteria *Criteria
		want     bool
	}{
		{name: "nil matches", criteria: nil, want: true},
		{name: "empty matches", criteria: &Criteria{}, want: true},
		{name: "run match", criteria: &Criteria{RunID: "run-1"}, want: true},
		{name: "run mismatch", criteria: &Criteria{RunID: "run-2"}, want: false},
		{name: "since inclusive", criteria: &Criteria{SinceTimestampMs: 1000}, want: true},
		{name: "since after", criteria: &Criteria{SinceTimestampMs: 1001}, want: false},
		{name: "until inclusive", criteria: &Criteria{UntilTimestampMs: 1000}, want: true},
		{name: "until before", criteria: &Criteria{UntilTimestampMs: 999}, want: false},
		{name: "type glob", criteria: &Criteria{TypeGlob: "Build*"}, want: true},
		{name: "type glob mismatch", criteria: &Criteria{TypeGlob: "*Code"}, want: false},
		{name: "bad glob never matches", criteria: &Criteria{TypeGlob: "["}, want: false},
		{name: "role", criteria: &Criteria{Role: "Backend Unit Tester"}, want: true},
		{name: "role is exact", criteria: &Criteria{Role: "backend unit tester"}, want: false},
		{name: "structural", criteria: &Criteria{Structural: blackboard.StructuralTypeFailure}, want: true},
		{name: "structural mismatch", criteria: &Criteria{Structural: blackboard.StructuralTypeTerminal}, want: false},
		{
			name:     "all criteria are anded",
			criteria: &Criteria{RunID: "run-1", TypeGlob: "Build*", Role: "Solutions Architect"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(art))
		})
	}
}

func TestCriteriaValidate(t *testing.T) {
	assert.NoError(t, (&Criteria{TypeGlob: "Backend*"}).Validate())
	assert.Error(t, (&Criteria{TypeGlob: "["}).Validate())

	var none *Criteria
	assert.NoError(t, none.Validate())
	assert.False(t, none.HasFilters())
	assert.True(t, (&Criteria{Role: "x"}).HasFilters())
}
