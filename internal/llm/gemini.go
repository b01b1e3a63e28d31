package llm

import (
	"context"
	"fmt"
	"strings"

	"fame/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModels lists the Gemini variants in preference order.
var GeminiModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash-002",
	"gemini-1.5-pro-002",
}

// GeminiProvider talks to the Google Gemini API. A client is built per call
// because the API key belongs to the requesting user.
type GeminiProvider struct {
	models []string
	opts   []option.ClientOption
}

// NewGeminiProvider creates a Gemini provider. Extra client options are
// appended after the API key (endpoint overrides, custom HTTP clients).
func NewGeminiProvider(opts ...option.ClientOption) *GeminiProvider {
	return &GeminiProvider{models: GeminiModels, opts: opts}
}

func (p *GeminiProvider) Name() ProviderID { return ProviderGemini }

func (p *GeminiProvider) Models() []string { return p.models }

// Generate sends a prompt to the given Gemini model and returns the generated text.
func (p *GeminiProvider) Generate(ctx context.Context, model, credential, prompt string) (ContentResponse, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, p.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	resp, err := client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content with %s: %w", model, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ContentResponse{}, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return ContentResponse{}, ErrEmptyResponse
	}

	usage := shared.TokenUsage{Model: model}
	if md := resp.UsageMetadata; md != nil {
		usage.PromptTokens = int(md.PromptTokenCount)
		usage.CompletionTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}

	return ContentResponse{Content: sb.String(), Usage: usage}, nil
}
