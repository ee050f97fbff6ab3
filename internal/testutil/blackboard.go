// Package testutil provides journal fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// InstanceName is the journal namespace used by fixtures.
const InstanceName = "test-instance"

// Blackboard starts an in-memory Redis and returns a client for it. Both are
// torn down when the test ends.
func Blackboard(t *testing.T) (*blackboard.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, InstanceName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// SeedRun journals entries as one run and returns the run ID and the
// recorded artefacts in order.
func SeedRun(t *testing.T, client *blackboard.Client, entries ...blackboard.Entry) (string, []*blackboard.Artefact) {
	t.Helper()
	runID := uuid.New().String()
	recorder, err := blackboard.NewRecorder(client, runID)
	require.NoError(t, err)

	artefacts := make([]*blackboard.Artefact, 0, len(entries))
	for _, e := range entries {
		a, err := recorder.Record(context.Background(), e)
		require.NoError(t, err)
		artefacts = append(artefacts, a)
	}
	return runID, artefacts
}

// TodoRun is a short successful run with one repaired build.
func TodoRun() []blackboard.Entry {
	return []blackboard.Entry{
		{Type: blackboard.TypeGoalDefined, Role: "Project Manager", Payload: "build a todo list api"},
		{Type: blackboard.TypeProjectScope, Role: "Solutions Architect", Payload: `{"is_crud_required":true}`},
		{Type: blackboard.TypeBackendCode, Role: "Backend Developer", Payload: "fn main() { v0() }"},
		{Type: blackboard.TypeEndpointSchema, Role: "Backend Developer", Payload: `[{"path":"/todos","method":"GET"}]`},
		{
			Type:       blackboard.TypeBuildFailure,
			Role:       "Backend Unit Tester",
			Payload:    "error[E0425]: cannot find value `x`",
			Structural: blackboard.StructuralTypeFailure,
		},
		{Type: blackboard.TypeBackendCode, Role: "Backend Unit Tester", Payload: "fn main() { v1() }"},
		{
			Type:       blackboard.TypeProjectComplete,
			Role:       "Project Manager",
			Payload:    "build a todo list api",
			Structural: blackboard.StructuralTypeTerminal,
		},
	}
}

// StoppedRedis returns the address of a Redis server that has already shut
// down, for exercising connection failures.
func StoppedRedis(t *testing.T) string {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()
	return addr
}
