// Package watch streams journal artefacts as a run records them.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/pkg/blackboard"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// Subscriber opens an artefact event subscription.
type Subscriber interface {
	SubscribeArtefactEvents(ctx context.Context) (*blackboard.Subscription, error)
}

// Options control a Stream call.
type Options struct {
	Format   OutputFormat
	Criteria *filter.Criteria

	// ExitOnCompletion stops the stream after a matching Terminal artefact
	// or pipeline failure.
	ExitOnCompletion bool
}

type formatter interface {
	FormatArtefact(a *blackboard.Artefact) error
}

func newFormatter(format OutputFormat, w io.Writer) (formatter, error) {
	switch format {
	case "", OutputFormatDefault:
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSONL:
		return &jsonFormatter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("invalid output format %q (expected default or jsonl)", format)
	}
}

// Stream writes matching artefact events to w until ctx is cancelled, the
// subscription ends, or a run completes with ExitOnCompletion set.
// Cancellation is not an error.
func Stream(ctx context.Context, sub Subscriber, opts Options, w io.Writer) error {
	if err := opts.Criteria.Validate(); err != nil {
		return fmt.Errorf("invalid type pattern: %w", err)
	}
	f, err := newFormatter(opts.Format, w)
	if err != nil {
		return err
	}

	subscription, err := sub.SubscribeArtefactEvents(ctx)
	if err != nil {
		return err
	}
	defer subscription.Close()

	events := subscription.Events()
	errs := subscription.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)
		case a, ok := <-events:
			if !ok {
				return nil
			}
			if !opts.Criteria.Matches(a) {
				continue
			}
			if err := f.FormatArtefact(a); err != nil {
				return err
			}
			if opts.ExitOnCompletion && ends(a) {
				return nil
			}
		}
	}
}

func ends(a *blackboard.Artefact) bool {
	return a.StructuralType == blackboard.StructuralTypeTerminal || a.Type == blackboard.TypePipelineFailed
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatArtefact(a *blackboard.Artefact) error {
	ts := time.UnixMilli(a.CreatedAtMs).Format("15:04:05")
	version := ""
	if a.Version > 1 {
		version = fmt.Sprintf(" (v%d)", a.Version)
	}

	var err error
	switch {
	case a.Type == blackboard.TypePipelineFailed:
		_, err = fmt.Fprintf(f.writer, "[%s] 💥 Pipeline failed: by=%s, run=%s: %s\n",
			ts, a.ProducedByRole, a.RunID, firstLine(a.Payload))
	case a.StructuralType == blackboard.StructuralTypeFailure:
		_, err = fmt.Fprintf(f.writer, "[%s] ❌ %s: by=%s, id=%s: %s\n",
			ts, a.Type, a.ProducedByRole, a.ID, firstLine(a.Payload))
	default:
		_, err = fmt.Fprintf(f.writer, "[%s] ✨ Artefact created%s: by=%s, type=%s, id=%s\n",
			ts, version, a.ProducedByRole, a.Type, a.ID)
	}
	if err != nil {
		return err
	}

	if a.StructuralType == blackboard.StructuralTypeTerminal {
		_, err = fmt.Fprintf(f.writer, "[%s] 🎉 Run completed: Terminal artefact created, run=%s, id=%s\n",
			ts, a.RunID, a.ID)
	}
	return err
}

type jsonFormatter struct {
	enc *json.Encoder
}

func (f *jsonFormatter) FormatArtefact(a *blackboard.Artefact) error {
	return f.enc.Encode(struct {
		Event string `json:"event"`
		*blackboard.Artefact
	}{Event: "artefact_created", Artefact: a})
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
