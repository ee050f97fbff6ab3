package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"First option", "Second option"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestWriteError(t *testing.T) {
	withoutColor(t)

	t.Run("single suggestion", func(t *testing.T) {
		var buf bytes.Buffer
		writeError(&buf, "Missing credentials", "OPEN_AI_KEY is not set", nil, []string{"Export OPEN_AI_KEY"})
		assert.Equal(t, "Missing credentials\n\nOPEN_AI_KEY is not set\n\nExport OPEN_AI_KEY\n", buf.String())
	})

	t.Run("details are sorted and suggestions numbered", func(t *testing.T) {
		var buf bytes.Buffer
		writeError(&buf, "Build failed", "", map[string]string{"b": "2", "a": "1"}, []string{"x", "y"})
		assert.Equal(t, "Build failed\n\n\n  a: 1\n  b: 2\n\nEither:\n  1. x\n  2. y\n", buf.String())
	})
}

func TestConsoleAgent(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Agent("Solutions Architect", "Defining project scope", AICall)
	c.Observe("Backend Developer", "Writing backend code")
	c.Agent("Backend Developer", "Build failed, retrying", Issue)

	assert.Equal(t,
		"[Agent] Solutions Architect: Defining project scope\n"+
			"[Agent] Backend Developer: Writing backend code\n"+
			"[Agent] Backend Developer: Build failed, retrying\n",
		buf.String())
}

func TestCommandColor(t *testing.T) {
	assert.Equal(t, cyan, AICall.color())
	assert.Equal(t, magenta, UnitTest.color())
	assert.Equal(t, red, Issue.color())
}
