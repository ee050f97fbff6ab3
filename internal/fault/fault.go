// Package fault classifies pipeline errors so that only the orchestrator
// decides between recovery and escalation.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies what went wrong.
type Kind string

const (
	// KindTransientGateway is a network failure or non-success LLM response.
	KindTransientGateway Kind = "transient_gateway"

	// KindDecode is an LLM reply that could not be parsed as the expected type.
	KindDecode Kind = "decode"

	// KindCompile is a build collaborator failure.
	KindCompile Kind = "compile"

	// KindRuntimeProbe is a non-2xx smoke test response.
	KindRuntimeProbe Kind = "runtime_probe"

	// KindConfig is missing or invalid configuration at startup.
	KindConfig Kind = "config"

	// KindStage is any other failure raised inside a pipeline stage.
	KindStage Kind = "stage"
)

// Error is a classified error. Fatal errors terminate the pipeline.
type Error struct {
	Kind  Kind
	Op    string
	Err   error
	Fatal bool
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Fatal {
		prefix = "fatal " + prefix
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a recoverable error of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatal returns an error of the given kind that terminates the pipeline.
func Fatal(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err, Fatal: true}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or the empty Kind if err is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries a classification of the given kind.
func Is(err error, kind Kind) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if fe, ok := e.(*Error); ok && fe.Kind == kind {
			return true
		}
	}
	return false
}

// IsFatal reports whether any classified error in err's chain is fatal.
func IsFatal(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if fe, ok := e.(*Error); ok && fe.Fatal {
			return true
		}
	}
	return false
}

// Escalate marks err fatal, keeping its kind when it has one.
func Escalate(op string, err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindStage
	}
	return Fatal(kind, op, err)
}
