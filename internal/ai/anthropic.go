package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/amar74/n-be-sub001/internal/logger"
)

// AnthropicConfig configures the production completer.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// AnthropicCompleter implements Completer on the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    logger.Logger
}

// NewAnthropicCompleter creates the production completer.
func NewAnthropicCompleter(cfg AnthropicConfig, log logger.Logger) *AnthropicCompleter {
	return &AnthropicCompleter{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		logger:    log,
	}
}

// Complete sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return sb.String(), nil
}
