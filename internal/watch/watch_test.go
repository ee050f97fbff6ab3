package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the test read output while Stream writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamExitsOnCompletion(t *testing.T) {
	client, mr := testutil.Blackboard(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Stream(ctx, client, Options{
			ExitOnCompletion: true,
			Criteria:         &filter.Criteria{TypeGlob: "*"},
		}, out)
	}()

	channel := blackboard.ArtefactEventsChannel(testutil.InstanceName)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] > 0
	}, 2*time.Second, 10*time.Millisecond, "stream never subscribed")

	testutil.SeedRun(t, client, testutil.TodoRun()...)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("stream did not exit after the terminal artefact")
	}

	output := out.String()
	assert.Contains(t, output, "✨ Artefact created: by=Project Manager, type=GoalDefined")
	assert.Contains(t, output, "✨ Artefact created (v2): by=Backend Unit Tester, type=BackendCode")
	assert.Contains(t, output, "❌ BuildFailure: by=Backend Unit Tester")
	assert.Contains(t, output, "🎉 Run completed")
}

func TestStreamStopsOnCancel(t *testing.T) {
	client, _ := testutil.Blackboard(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Stream(ctx, client, Options{}, &syncBuffer{}) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream ignored cancellation")
	}
}

func TestStreamRejectsBadOptions(t *testing.T) {
	client, _ := testutil.Blackboard(t)

	err := Stream(context.Background(), client, Options{Format: "yaml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid output format")

	err = Stream(context.Background(), client, Options{Criteria: &filter.Criteria{TypeGlob: "["}}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid type pattern")
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		name     string
		artefact *blackboard.Artefact
		want     []string
	}{
		{
			name: "standard",
			artefact: &blackboard.Artefact{
				ID: "abc-123", Type: blackboard.TypeGoalDefined, Version: 1,
				ProducedByRole: "Project Manager", StructuralType: blackboard.StructuralTypeStandard,
			},
			want: []string{"✨ Artefact created: by=Project Manager, type=GoalDefined, id=abc-123"},
		},
		{
			name: "failure shows first diagnostic line",
			artefact: &blackboard.Artefact{
				ID: "f-1", Type: blackboard.TypeProbeFailure, ProducedByRole: "Backend Unit Tester",
				StructuralType: blackboard.StructuralTypeFailure, Payload: "GET /todos returned status 500\nmore",
			},
			want: []string{"❌ ProbeFailure: by=Backend Unit Tester, id=f-1: GET /todos returned status 500"},
		},
		{
			name: "pipeline failure",
			artefact: &blackboard.Artefact{
				ID: "p-1", RunID: "run-9", Type: blackboard.TypePipelineFailed, ProducedByRole: "Project Manager",
				StructuralType: blackboard.StructuralTypeFailure, Payload: "decode failed",
			},
			want: []string{"💥 Pipeline failed: by=Project Manager, run=run-9: decode failed"},
		},
		{
			name: "terminal",
			artefact: &blackboard.Artefact{
				ID: "t-1", RunID: "run-9", Type: blackboard.TypeProjectComplete,
				ProducedByRole: "Project Manager", StructuralType: blackboard.StructuralTypeTerminal,
			},
			want: []string{"type=ProjectComplete", "🎉 Run completed: Terminal artefact created, run=run-9, id=t-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, (&defaultFormatter{writer: &buf}).FormatArtefact(tt.artefact))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := newFormatter(OutputFormatJSONL, &buf)
		require.NoError(t, err)
		require.NoError(t, f.FormatArtefact(&blackboard.Artefact{ID: "abc", Type: "BackendCode", Version: 2}))

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &got))
		assert.Equal(t, "artefact_created", got["event"])
		assert.Equal(t, "abc", got["id"])
		assert.EqualValues(t, 2, got["version"])
	})
}
