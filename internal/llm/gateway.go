package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/warren/internal/fault"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultModel is the model identifier sent when none is configured.
	DefaultModel = "o4-mini"

	// DefaultTemperature is the sampling temperature sent when none is configured.
	DefaultTemperature float32 = 1.0
)

var (
	// ErrEmptyMessages is returned when Complete is called without messages.
	ErrEmptyMessages = errors.New("message list is empty")

	// ErrNoChoices is returned when the completion carries no choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// ChatClient is the subset of the go-openai client used by the gateway.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the fixed request parameters of a Gateway.
type Config struct {
	Model       string
	Temperature float32
	Retry       RetryPolicy
	Logger      *zap.Logger
}

// Gateway issues one completion request per call. It holds no per-call
// state and is safe for concurrent use.
type Gateway struct {
	client      ChatClient
	model       string
	temperature float32
	retry       RetryPolicy
	logger      *zap.Logger
}

// NewGateway creates a gateway over client.
func NewGateway(client ChatClient, cfg Config) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client cannot be nil")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		retry:       retry,
		logger:      logger.With(zap.String("component", "llm_gateway")),
	}, nil
}

// NewOpenAIClient builds the go-openai client with the organization header
// set. An empty baseURL keeps the public API endpoint.
func NewOpenAIClient(apiKey, orgID, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.OrgID = orgID
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Complete sends messages and returns the content of the first choice.
// Failures are retried per the gateway's RetryPolicy; exhausting it yields a
// fatal TransientGateway error.
func (g *Gateway) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fault.Fatal(fault.KindStage, "complete", ErrEmptyMessages)
	}

	request := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toChatMessages(messages),
		Temperature: g.temperature,
	}

	var content string
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := g.client.CreateChatCompletion(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			g.logger.Warn("completion attempt failed",
				zap.String("event_type", "completion_failed"),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			g.logger.Warn("completion attempt returned no choices",
				zap.String("event_type", "completion_empty"),
				zap.Int("attempt", attempt))
			return ErrNoChoices
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, g.retry.strategy(ctx)); err != nil {
		if ctx.Err() != nil {
			return "", fault.Fatal(fault.KindStage, "complete", ctx.Err())
		}
		return "", fault.Fatal(fault.KindTransientGateway, "complete",
			fmt.Errorf("%d attempts failed: %w", attempt, err))
	}

	g.logger.Debug("completion received",
		zap.String("event_type", "completion_received"),
		zap.Int("attempt", attempt),
		zap.Int("content_bytes", len(content)))

	return content, nil
}
