package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/metrics"
)

// Compile-time check: Completer implements domain.Completer.
var _ domain.Completer = (*Completer)(nil)

// Completer sends chat completions to the OpenAI-compatible API.
type Completer struct {
	client    *Client
	model     string
	maxTokens int
}

// NewCompleter creates a chat completion client for model. maxTokens <= 0 leaves the limit to the provider.
func NewCompleter(c *Client, model string, maxTokens int) *Completer {
	return &Completer{client: c, model: model, maxTokens: maxTokens}
}

// Model returns the chat model name.
func (c *Completer) Model() string { return c.model }

// Complete implements domain.Completer. The system prompt is sent first, followed by messages in order.
func (c *Completer) Complete(
	ctx context.Context, system string, messages []domain.Message, temperature float32,
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(system, messages),
		Temperature: temperature,
		User:        c.client.user,
	}
	// Temperature is omitempty upstream; a zero would fall back to the provider default of 1.
	if temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	if err := c.client.wait(ctx); err != nil {
		return "", err
	}

	provider := c.client.provider
	start := time.Now()

	resp, err := c.client.api.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		c.client.logger.Warn("Chat completion failed",
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError(domain.CollaboratorCompletion, err)
	}
	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return "", domain.NewTransportError(domain.CollaboratorCompletion, fmt.Errorf("empty completion response"))
	}

	metrics.CompletionRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.CompletionTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	domain.UsageFromContext(ctx).AddCompletionTokens(resp.Usage.TotalTokens)

	c.client.logger.Debug("Chat completion done",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(system string, messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return out
}
