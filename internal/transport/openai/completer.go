package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
)

// Completer obtains chat completions, single-shot or streamed, using per-call
// tenant credentials.
type Completer struct {
	defaultModel string
	temperature  float32
	baseURL      string
	logger       *zap.Logger
}

// CompleterConfig holds the completion service settings.
type CompleterConfig struct {
	DefaultModel string
	Temperature  float32
	BaseURL      string
	Logger       *zap.Logger
}

// NewCompleter creates a completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	return &Completer{
		defaultModel: cfg.DefaultModel,
		temperature:  cfg.Temperature,
		baseURL:      cfg.BaseURL,
		logger:       cfg.Logger,
	}
}

// Complete submits the conversation in non-incremental mode and returns the
// first choice's text. No choices is not an error here; the caller maps it to
// its fixed fallback string.
func (c *Completer) Complete(ctx context.Context, cred domain.Credential, messages []domain.Message) (string, error) {
	if cred.IsZero() {
		return "", domain.ErrCredentialMissing
	}

	resp, err := c.clientFor(cred).CreateChatCompletion(ctx, c.request(cred, messages, false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", domain.ErrCompletionProvider)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("Completion returned no choices", zap.String("model", resp.Model))
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream submits the conversation in incremental mode and forwards each text
// fragment to emit in arrival order. Returns when the provider stream ends,
// emit returns an error, or ctx is cancelled; the provider stream is closed
// in every case.
func (c *Completer) Stream(ctx context.Context, cred domain.Credential, messages []domain.Message, emit func(fragment string) error) error {
	if cred.IsZero() {
		return domain.ErrCredentialMissing
	}

	stream, err := c.clientFor(cred).CreateChatCompletionStream(ctx, c.request(cred, messages, true))
	if err != nil {
		return fmt.Errorf("open completion stream: %w", domain.ErrCompletionProvider)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("completion stream: %w", domain.ErrCompletionProvider)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		if err := emit(fragment); err != nil {
			return fmt.Errorf("emit fragment: %w", err)
		}
	}
}

func (c *Completer) request(cred domain.Credential, messages []domain.Message, stream bool) openai.ChatCompletionRequest {
	model := cred.ChatModel
	if model == "" {
		model = c.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
		Stream:      stream,
	}
}

func (c *Completer) clientFor(cred domain.Credential) *openai.Client {
	cfg := openai.DefaultConfig(cred.APIKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
