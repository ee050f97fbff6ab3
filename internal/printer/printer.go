// Package printer renders user-facing console output: agent progress lines,
// status messages and formatted CLI errors.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

func init() {
	// Users can disable with NO_COLOR
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta)
)

// Command classifies an agent progress line.
type Command int

const (
	// AICall marks a statement issued while waiting on the LLM.
	AICall Command = iota
	// UnitTest marks build and smoke-test progress.
	UnitTest
	// Issue marks a recoverable problem the agent is working around.
	Issue
)

func (c Command) color() *color.Color {
	switch c {
	case UnitTest:
		return magenta
	case Issue:
		return red
	default:
		return cyan
	}
}

// Console writes agent progress lines. The zero value is not usable; call
// NewConsole.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, or stdout when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Agent prints "[Agent] <position>: <statement>" with the statement colored
// by kind.
func (c *Console) Agent(position, statement string, kind Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s", green.Sprintf("[Agent] %s: ", position))
	fmt.Fprintf(c.out, "%s\n", kind.color().Sprint(statement))
}

// Observe satisfies the task decoder's observer hook.
func (c *Console) Observe(position, operation string) {
	c.Agent(position, operation, AICall)
}

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Print(msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Print(msg)
}

// Error prints a formatted error to stderr and returns an error carrying only
// the title, for use with cobra's SilenceErrors.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with a block of key/value details, printed in
// key order.
func ErrorWithContext(title string, explanation string, details map[string]string, suggestions []string) error {
	writeError(os.Stderr, title, explanation, details, suggestions)
	return fmt.Errorf("%s", title)
}

func writeError(w io.Writer, title, explanation string, details map[string]string, suggestions []string) {
	red.Fprintf(w, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, details[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(w, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}
