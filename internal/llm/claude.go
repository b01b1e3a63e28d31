package llm

import (
	"context"
	"fmt"
	"strings"

	"fame/internal/shared"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	claudeModel     = "claude-3-sonnet-20240229"
	claudeMaxTokens = 4000
)

// ClaudeProvider talks to the Anthropic Messages API.
type ClaudeProvider struct {
	opts []anthropicoption.RequestOption
}

// NewClaudeProvider creates a Claude provider. The SDK's own retries are
// disabled; the Client retry loop owns that decision.
func NewClaudeProvider(opts ...anthropicoption.RequestOption) *ClaudeProvider {
	return &ClaudeProvider{opts: opts}
}

func (p *ClaudeProvider) Name() ProviderID { return ProviderClaude }

func (p *ClaudeProvider) Models() []string { return []string{claudeModel} }

// Generate sends a prompt to Claude and returns the first text block.
func (p *ClaudeProvider) Generate(ctx context.Context, model, credential, prompt string) (ContentResponse, error) {
	opts := append([]anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(credential),
		anthropicoption.WithMaxRetries(0),
	}, p.opts...)
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return ContentResponse{}, fmt.Errorf("claude api error: %w", err)
	}

	usage := shared.TokenUsage{
		Model:            model,
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return ContentResponse{Content: block.Text, Usage: usage}, nil
		}
	}
	return ContentResponse{}, ErrEmptyResponse
}
