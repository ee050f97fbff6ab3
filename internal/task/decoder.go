package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/warren/internal/fault"
	"github.com/dyluth/warren/internal/llm"
	"go.uber.org/zap"
)

// Completer sends a conversation to the LLM and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Observer is told about every task request before it is sent.
type Observer interface {
	Observe(agent, operation string)
}

// Validatable is implemented by decoded values that check their own content.
type Validatable interface {
	Validate() error
}

// Request describes one task call.
type Request struct {
	// Context is the literal input to the task.
	Context string
	// History is replayed ahead of the task message.
	History   []llm.Message
	Agent     string
	Operation string
	Kind      Kind
}

// Options configures a Decoder.
type Options struct {
	Observer Observer
	Logger   *zap.Logger
	// Reprompt allows one format-correction round trip before a decode
	// failure becomes fatal.
	Reprompt bool
}

// Decoder issues task requests through a Completer.
type Decoder struct {
	completer Completer
	observer  Observer
	logger    *zap.Logger
	reprompt  bool
}

type nopObserver struct{}

func (nopObserver) Observe(string, string) {}

// NewDecoder creates a decoder over completer.
func NewDecoder(completer Completer, opts Options) *Decoder {
	d := &Decoder{
		completer: completer,
		observer:  opts.Observer,
		logger:    opts.Logger,
		reprompt:  opts.Reprompt,
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Request sends History followed by the extended task message and returns
// the raw reply.
func (d *Decoder) Request(ctx context.Context, req Request) (string, error) {
	if !req.Kind.Valid() {
		return "", fault.Fatal(fault.KindStage, "task request", fmt.Errorf("unknown task kind %q", req.Kind))
	}

	d.observer.Observe(req.Agent, req.Operation)
	d.logger.Info("task requested",
		zap.String("event_type", "task_requested"),
		zap.String("agent", req.Agent),
		zap.String("operation", req.Operation),
		zap.String("kind", req.Kind.String()),
		zap.Int("history", len(req.History)))

	return d.completer.Complete(ctx, d.messages(req))
}

func (d *Decoder) messages(req Request) []llm.Message {
	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	return append(messages, Extend(req.Kind, req.Context))
}

// Decode requests req and parses the reply as T. A T implementing
// Validatable is validated after parsing. When reprompting is enabled a
// failed parse is answered with one correction request; a second failure is
// a fatal Decode error.
func Decode[T any](ctx context.Context, d *Decoder, req Request) (T, error) {
	var zero T

	reply, err := d.Request(ctx, req)
	if err != nil {
		return zero, err
	}

	value, perr := parse[T](reply)
	if perr == nil {
		return value, nil
	}
	if !d.reprompt {
		return zero, fault.Fatal(fault.KindDecode, string(req.Kind), perr)
	}

	d.logger.Warn("reply could not be decoded, reprompting",
		zap.String("event_type", "decode_reprompt"),
		zap.String("agent", req.Agent),
		zap.String("kind", req.Kind.String()),
		zap.Error(perr))

	messages := append(d.messages(req), llm.Assistant(reply), llm.System(correction(perr)))
	reply, err = d.completer.Complete(ctx, messages)
	if err != nil {
		return zero, err
	}

	value, perr = parse[T](reply)
	if perr != nil {
		return zero, fault.Fatal(fault.KindDecode, string(req.Kind), fmt.Errorf("after reprompt: %w", perr))
	}
	return value, nil
}

func parse[T any](reply string) (T, error) {
	var value T

	payload, err := ExtractJSON(reply)
	if err != nil {
		return value, err
	}
	if payload == "null" {
		return value, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	if v, ok := any(&value).(Validatable); ok {
		if err := v.Validate(); err != nil {
			return value, fmt.Errorf("decoded value is invalid: %w", err)
		}
	}
	return value, nil
}

func correction(err error) string {
	return fmt.Sprintf("Your previous output could not be used: %v. "+
		"Print ONLY the JSON value the function returns. No markdown, no commentary.", err)
}
