package hoard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListArtefacts(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.Blackboard(t)
	runID, artefacts := testutil.SeedRun(t, client, testutil.TodoRun()...)
	otherRun, _ := testutil.SeedRun(t, client, testutil.TodoRun()[:1]...)

	t.Run("table lists every run", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ListArtefacts(ctx, client, testutil.InstanceName, OutputFormatDefault, nil, &buf))

		out := buf.String()
		assert.Contains(t, out, "Artefacts for instance 'test-instance'")
		assert.Contains(t, out, runID[:8])
		assert.Contains(t, out, otherRun[:8])
		assert.Contains(t, out, "BuildFail")
		assert.Contains(t, out, "v2", "the repaired code is the second version")
		assert.Contains(t, out, "8 artefacts found")
	})

	t.Run("jsonl honours filters", func(t *testing.T) {
		var buf bytes.Buffer
		criteria := &filter.Criteria{RunID: runID, TypeGlob: "Backend*"}
		require.NoError(t, ListArtefacts(ctx, client, testutil.InstanceName, OutputFormatJSONL, criteria, &buf))

		var got []blackboard.Artefact
		scanner := bufio.NewScanner(&buf)
		for scanner.Scan() {
			var a blackboard.Artefact
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &a))
			got = append(got, a)
		}
		require.Len(t, got, 2)
		assert.Equal(t, artefacts[2].ID, got[0].ID)
		assert.Equal(t, artefacts[5].ID, got[1].ID)
		assert.Equal(t, got[0].LogicalID, got[1].LogicalID)
	})

	t.Run("failures only", func(t *testing.T) {
		got, err := Collect(ctx, client, &filter.Criteria{Structural: blackboard.StructuralTypeFailure})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, blackboard.TypeBuildFailure, got[0].Type)
	})

	t.Run("bad glob", func(t *testing.T) {
		_, err := Collect(ctx, client, &filter.Criteria{TypeGlob: "["})
		assert.ErrorContains(t, err, "invalid type pattern")
	})

	t.Run("empty instance", func(t *testing.T) {
		empty, _ := testutil.Blackboard(t)
		var buf bytes.Buffer
		require.NoError(t, ListArtefacts(ctx, empty, "quiet", OutputFormatDefault, nil, &buf))
		assert.Equal(t, "No artefacts found for instance 'quiet'\n", buf.String())
	})
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.Blackboard(t)
	done, _ := testutil.SeedRun(t, client, testutil.TodoRun()...)
	failed, _ := testutil.SeedRun(t, client,
		blackboard.Entry{Type: blackboard.TypeGoalDefined, Role: "Project Manager", Payload: "build a blog"},
		blackboard.Entry{Type: blackboard.TypePipelineFailed, Role: "Project Manager", Payload: "decode failed",
			Structural: blackboard.StructuralTypeFailure},
	)

	runs, err := ListRuns(ctx, client)
	require.NoError(t, err)
	byID := map[string]RunSummary{}
	for _, r := range runs {
		byID[r.RunID] = r
	}

	require.Len(t, byID, 2)
	assert.Equal(t, RunSummary{
		RunID:       done,
		Goal:        "build a todo list api",
		Outcome:     OutcomeComplete,
		Artefacts:   7,
		Failures:    1,
		StartedAtMs: byID[done].StartedAtMs,
	}, byID[done])
	assert.Equal(t, OutcomeFailed, byID[failed].Outcome)
	assert.Zero(t, byID[failed].Failures, "the pipeline failure itself is not a repair failure")

	var buf bytes.Buffer
	FormatRuns(&buf, runs, testutil.InstanceName)
	assert.Contains(t, buf.String(), "build a blog")
	assert.Contains(t, buf.String(), "2 runs found")
}

func TestGetArtefact(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.Blackboard(t)
	_, artefacts := testutil.SeedRun(t, client, testutil.TodoRun()...)
	code := artefacts[2]

	t.Run("pretty json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetArtefact(ctx, client, code.ID, false, &buf))
		assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"id\""))

		var got blackboard.Artefact
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, *code, got)
	})

	t.Run("payload only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, GetArtefact(ctx, client, code.ID, true, &buf))
		assert.Equal(t, "fn main() { v0() }\n", buf.String())
	})

	t.Run("not found", func(t *testing.T) {
		err := GetArtefact(ctx, client, "00000000-0000-4000-8000-000000000000", false, &bytes.Buffer{})
		assert.True(t, IsNotFound(err))
	})
}

func TestFormatHelpers(t *testing.T) {
	now := time.UnixMilli(10 * 24 * 3600 * 1000)

	assert.Equal(t, "-", formatAge(0, now))
	assert.Equal(t, "5s ago", formatAge(now.Add(-5*time.Second).UnixMilli(), now))
	assert.Equal(t, "3m ago", formatAge(now.Add(-3*time.Minute).UnixMilli(), now))
	assert.Equal(t, "2h ago", formatAge(now.Add(-2*time.Hour).UnixMilli(), now))
	assert.Equal(t, "4d ago", formatAge(now.Add(-96*time.Hour).UnixMilli(), now))

	assert.Equal(t, "-", formatPayload("\n  \n"))
	assert.Equal(t, "use actix_web::{web, App};", formatPayload("\nuse actix_web::{web, App};\nfn main() {}"))
	assert.Len(t, formatPayload(strings.Repeat("x", 80)), 40)

	assert.Equal(t, "Code", formatType(blackboard.TypeBackendCode))
	assert.Equal(t, "Custom", formatType("Custom"))
	assert.Equal(t, "Somethi...", formatType("SomethingLonger"))

	_, err := ParseOutputFormat("yaml")
	assert.Error(t, err)
	format, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, format)
}
